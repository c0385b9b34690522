package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/gantryhq/gantry/internal/logging"
)

// Config is the complete gantry configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Gates   GatesConfig   `mapstructure:"gates"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig controls where run state and artifacts live.
type StorageConfig struct {
	// DataDir is the root directory for run directories and the badger
	// database. Defaults to $XDG_DATA_HOME/gantry.
	DataDir string `mapstructure:"data_dir"`
	// ArtifactBackend selects the artifact store.
	// Options: "fs", "badger"
	ArtifactBackend string `mapstructure:"artifact_backend"`
}

// EngineConfig controls run execution.
type EngineConfig struct {
	// Concurrency is the maximum number of tasks executing in parallel
	// within a run.
	Concurrency int `mapstructure:"concurrency"`
}

// GatesConfig controls checkpoint gate behavior.
type GatesConfig struct {
	// DefaultTimeoutMinutes applies to manual gates that declare no
	// timeout in the plan. 0 means such gates wait indefinitely.
	DefaultTimeoutMinutes int `mapstructure:"default_timeout_minutes"`
}

// TasksConfig holds fallbacks for per-task fields the plan leaves unset.
type TasksConfig struct {
	// DefaultTimeoutSeconds bounds a task attempt when neither the task
	// nor the plan defaults set a timeout. 0 disables the fallback.
	DefaultTimeoutSeconds int `mapstructure:"default_timeout_seconds"`
}

// LoggingConfig controls the per-run gantry.log files.
type LoggingConfig struct {
	// Level is the minimum level written.
	// Options: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// MaxSizeMB is the log size in megabytes before rotation. 0 disables
	// rotation.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to retain.
	MaxBackups int `mapstructure:"max_backups"`
}

// DefaultTimeout returns the gate fallback timeout as a time.Duration.
func (c *GatesConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMinutes) * time.Minute
}

// DefaultTimeout returns the task fallback timeout as a time.Duration.
func (c *TasksConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// Rotation returns the rotation settings for per-run log files.
func (c *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:         DefaultDataDir(),
			ArtifactBackend: "fs",
		},
		Engine: EngineConfig{
			Concurrency: 4,
		},
		Gates: GatesConfig{
			DefaultTimeoutMinutes: 0, // wait indefinitely
		},
		Tasks: TasksConfig{
			DefaultTimeoutSeconds: 0, // no fallback timeout
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("storage.data_dir", defaults.Storage.DataDir)
	viper.SetDefault("storage.artifact_backend", defaults.Storage.ArtifactBackend)

	viper.SetDefault("engine.concurrency", defaults.Engine.Concurrency)

	viper.SetDefault("gates.default_timeout_minutes", defaults.Gates.DefaultTimeoutMinutes)

	viper.SetDefault("tasks.default_timeout_seconds", defaults.Tasks.DefaultTimeoutSeconds)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if the
// configured values do not load.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gantry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gantry"
	}
	return filepath.Join(home, ".config", "gantry")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultDataDir returns the default root for run state.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "gantry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gantry"
	}
	return filepath.Join(home, ".local", "share", "gantry")
}
