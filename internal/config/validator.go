package config

import (
	"slices"

	"github.com/gantryhq/gantry/internal/errors"
)

// ValidLogLevels returns the accepted log level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidArtifactBackends returns the accepted artifact backend values.
func ValidArtifactBackends() []string {
	return []string{"fs", "badger"}
}

// Validate checks the Config for invalid values. All failures are joined
// into one error so a broken config file is reported in a single pass.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.DataDir == "" {
		errs = append(errs, errors.NewValidationError("data directory must not be empty").
			WithField("storage.data_dir"))
	}
	if !slices.Contains(ValidArtifactBackends(), c.Storage.ArtifactBackend) {
		errs = append(errs, errors.NewValidationError("unknown artifact backend").
			WithField("storage.artifact_backend").WithValue(c.Storage.ArtifactBackend))
	}

	if c.Engine.Concurrency < 1 {
		errs = append(errs, errors.NewValidationError("concurrency must be at least 1").
			WithField("engine.concurrency").WithValue(c.Engine.Concurrency))
	}
	if c.Engine.Concurrency > 256 {
		errs = append(errs, errors.NewValidationError("concurrency must be at most 256").
			WithField("engine.concurrency").WithValue(c.Engine.Concurrency))
	}

	if c.Gates.DefaultTimeoutMinutes < 0 {
		errs = append(errs, errors.NewValidationError("gate timeout must not be negative").
			WithField("gates.default_timeout_minutes").WithValue(c.Gates.DefaultTimeoutMinutes))
	}
	if c.Tasks.DefaultTimeoutSeconds < 0 {
		errs = append(errs, errors.NewValidationError("task timeout must not be negative").
			WithField("tasks.default_timeout_seconds").WithValue(c.Tasks.DefaultTimeoutSeconds))
	}

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errs = append(errs, errors.NewValidationError("unknown log level").
			WithField("logging.level").WithValue(c.Logging.Level))
	}
	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, errors.NewValidationError("log size must not be negative").
			WithField("logging.max_size_mb").WithValue(c.Logging.MaxSizeMB))
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, errors.NewValidationError("log backups must not be negative").
			WithField("logging.max_backups").WithValue(c.Logging.MaxBackups))
	}

	return errors.Join(errs...)
}
