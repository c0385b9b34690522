package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify gantry configuration",
	Long: `View or modify gantry configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  gantry config set engine.concurrency 8
  gantry config set storage.artifact_backend badger
  gantry config set gates.default_timeout_minutes 30

Valid keys:
  storage.data_dir              - Directory holding run state
  storage.artifact_backend      - Artifact store backend (fs, badger)
  engine.concurrency            - Max tasks executing in parallel per run
  gates.default_timeout_minutes - Timeout for gates that declare none (0 = wait forever)
  tasks.default_timeout_seconds - Timeout for tasks that declare none (0 = no limit)
  logging.level                 - Run log level (debug, info, warn, error)
  logging.max_size_mb           - Rotate run logs above this size (0 = no rotation)
  logging.max_backups           - Rotated log files to keep`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/gantry/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("storage:")
	fmt.Printf("  data_dir: %s\n", cfg.Storage.DataDir)
	fmt.Printf("  artifact_backend: %s\n", cfg.Storage.ArtifactBackend)

	fmt.Println("engine:")
	fmt.Printf("  concurrency: %d\n", cfg.Engine.Concurrency)

	fmt.Println("gates:")
	fmt.Printf("  default_timeout_minutes: %d\n", cfg.Gates.DefaultTimeoutMinutes)

	fmt.Println("tasks:")
	fmt.Printf("  default_timeout_seconds: %d\n", cfg.Tasks.DefaultTimeoutSeconds)

	fmt.Println("logging:")
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Printf("  max_backups: %d\n", cfg.Logging.MaxBackups)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"storage.data_dir":              "string",
		"storage.artifact_backend":      "string",
		"engine.concurrency":            "int",
		"gates.default_timeout_minutes": "int",
		"tasks.default_timeout_seconds": "int",
		"logging.level":                 "string",
		"logging.max_size_mb":           "int",
		"logging.max_backups":           "int",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'gantry config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		switch key {
		case "storage.artifact_backend":
			if !slices.Contains(config.ValidArtifactBackends(), value) {
				return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
					key, value, strings.Join(config.ValidArtifactBackends(), ", "))
			}
		case "logging.level":
			if !slices.Contains(config.ValidLogLevels(), value) {
				return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
					key, value, strings.Join(config.ValidLogLevels(), ", "))
			}
		}
		typedValue = value
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'gantry config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Gantry Configuration

# Storage settings
storage:
  # Directory holding run state, artifacts, and logs
  # data_dir: ~/.local/share/gantry
  # Artifact store backend
  # Options: fs, badger
  artifact_backend: fs

# Engine settings
engine:
  # Maximum tasks executing in parallel within a run
  concurrency: 4

# Checkpoint gate settings
gates:
  # Applied to manual gates that declare no timeout of their own
  # (0 = wait forever)
  default_timeout_minutes: 0

# Task settings
tasks:
  # Applied to tasks that declare no timeout of their own (0 = no limit)
  default_timeout_seconds: 0

# Run log settings
logging:
  # Options: debug, info, warn, error
  level: info
  # Rotate the run log above this size (0 = no rotation)
  max_size_mb: 10
  # Rotated log files to keep per run
  max_backups: 3
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize gantry's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/gantry/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: GANTRY_* (e.g., GANTRY_ENGINE_CONCURRENCY)")

	return nil
}
