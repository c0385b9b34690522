// Package logging provides structured logging for Gantry runs.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation support for debugging and post-hoc analysis. Each
// run writes its own log file inside the run directory, so the record of
// a run travels with its artifacts and snapshot.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (run ID, task ID, phase, gate ID)
//   - Log rotation with configurable size limits
//   - Log reading and filtering utilities for the logs command
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses Go's slog internally which is designed for concurrent access. The
// [RotatingWriter] type uses a mutex to protect file operations during
// rotation. Child loggers created via With* methods share the underlying
// writer safely.
//
// # Basic Usage
//
// Create a logger for a run directory:
//
//	logger, err := logging.NewLogger("/path/to/run", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	// Log messages at various levels
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("operation completed", "duration_ms", 150)
//	logger.Warn("potential issue", "threshold", 100)
//	logger.Error("operation failed", "error", err.Error())
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	// Add run context
//	runLogger := logger.WithRun("run-abc123")
//
//	// Add phase context
//	phaseLogger := runLogger.WithPhase(2)
//
//	// Add task context
//	taskLogger := phaseLogger.WithTask("compile")
//
//	// All logs from taskLogger will include run_id, phase, and task_id
//	taskLogger.Info("task started", "executor", "shell")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"task started","run_id":"run-abc123","phase":2,"task_id":"compile","executor":"shell"}
//
// # Log Rotation
//
// For long runs, use log rotation to prevent unbounded growth:
//
//	config := logging.RotationConfig{
//	    MaxSizeMB:  10, // Rotate when file exceeds 10MB
//	    MaxBackups: 3,  // Keep 3 backup files
//	}
//
//	logger, err := logging.NewLoggerWithRotation("/path/to/run", "INFO", config)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
// Rotated files are named: gantry.log.1, gantry.log.2, etc., where .1 is
// the most recent backup.
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
//
// # Reading and Filtering
//
// Read and analyze logs after a run:
//
//	// Load all logs from a run directory, including rotated backups
//	entries, err := logging.ReadRunLogs("/path/to/run")
//	if err != nil {
//	    return err
//	}
//
//	// Filter logs by various criteria
//	filter := logging.NewLogFilter()
//	filter.Level = "WARN"
//	filter.TaskID = "compile"
//	filter.StartTime = time.Now().Add(-1 * time.Hour)
//	filtered := logging.FilterLogs(entries, filter)
//
//	for _, e := range filtered {
//	    fmt.Println(logging.FormatEntry(e))
//	}
//
// # Log Levels
//
// The package defines four log levels:
//
//   - [LevelDebug]: Detailed information for debugging
//   - [LevelInfo]: General operational information (default)
//   - [LevelWarn]: Warning conditions that may need attention
//   - [LevelError]: Error conditions that affect functionality
//
// Use [ValidLevels] to get the list of valid level strings, and [ParseLevel]
// to normalize user-provided level strings.
//
// # Configuration
//
// The logging system is typically configured via Gantry's config file:
//
//	logging:
//	  level: info
//	  max_size_mb: 10
//	  max_backups: 3
//
// See the Gantry README for complete configuration documentation.
package logging
