package config

import (
	"strings"
	"testing"

	"github.com/gantryhq/gantry/internal/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Storage.DataDir = "/tmp/gantry-test"
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty data dir",
			mutate: func(c *Config) { c.Storage.DataDir = "" },
			field:  "storage.data_dir",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Storage.ArtifactBackend = "s3" },
			field:  "storage.artifact_backend",
		},
		{
			name:   "zero concurrency",
			mutate: func(c *Config) { c.Engine.Concurrency = 0 },
			field:  "engine.concurrency",
		},
		{
			name:   "excessive concurrency",
			mutate: func(c *Config) { c.Engine.Concurrency = 1000 },
			field:  "engine.concurrency",
		},
		{
			name:   "negative gate timeout",
			mutate: func(c *Config) { c.Gates.DefaultTimeoutMinutes = -1 },
			field:  "gates.default_timeout_minutes",
		},
		{
			name:   "negative task timeout",
			mutate: func(c *Config) { c.Tasks.DefaultTimeoutSeconds = -5 },
			field:  "tasks.default_timeout_seconds",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "shouty" },
			field:  "logging.level",
		},
		{
			name:   "negative log size",
			mutate: func(c *Config) { c.Logging.MaxSizeMB = -1 },
			field:  "logging.max_size_mb",
		},
		{
			name:   "negative log backups",
			mutate: func(c *Config) { c.Logging.MaxBackups = -1 },
			field:  "logging.max_backups",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() error type = %T, want to contain *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() error %q does not name field %s", err, tt.field)
			}
		})
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DataDir = ""
	cfg.Engine.Concurrency = 0
	cfg.Logging.Level = "shouty"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, field := range []string{"storage.data_dir", "engine.concurrency", "logging.level"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("joined error %q missing %s", err, field)
		}
	}
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}
	if len(levels) != len(expected) {
		t.Fatalf("ValidLogLevels() length = %d, want %d", len(levels), len(expected))
	}
	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], level)
		}
	}
}

func TestValidArtifactBackends(t *testing.T) {
	backends := ValidArtifactBackends()
	if len(backends) != 2 || backends[0] != "fs" || backends[1] != "badger" {
		t.Errorf("ValidArtifactBackends() = %v, want [fs badger]", backends)
	}
}
