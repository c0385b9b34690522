package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotationConfig controls log file rotation behavior.
type RotationConfig struct {
	// MaxSizeMB is the maximum size in megabytes before rotation.
	// A value of 0 disables rotation.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to retain.
	// Older backups beyond this count are removed. A value of 0
	// keeps a single backup.
	MaxBackups int
}

// DefaultRotationConfig returns the rotation settings used when a run
// does not configure its own.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// RotatingWriter is an io.WriteCloser that rotates the underlying file
// when it exceeds the configured size. Rotated files are renamed to
// {path}.1, {path}.2, and so on, with {path}.1 being the most recent.
// It is safe for concurrent use.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	size    int64
	maxSize int64
	backups int
}

// NewRotatingWriter opens (or creates) the file at path for appending and
// returns a writer that rotates it according to config. Parent directories
// are created as needed.
func NewRotatingWriter(path string, config RotationConfig) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	backups := config.MaxBackups
	if backups < 1 {
		backups = 1
	}

	return &RotatingWriter{
		path:    path,
		file:    file,
		size:    info.Size(),
		maxSize: int64(config.MaxSizeMB) * 1024 * 1024,
		backups: backups,
	}, nil
}

// Write writes p to the current log file, rotating first if the write
// would push the file past the configured maximum size.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, fmt.Errorf("rotating writer is closed")
	}

	if w.maxSize > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate closes the current file, shifts existing backups, renames the
// current file to {path}.1, and opens a fresh file at path.
// Caller must hold w.mu.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync before rotation: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close before rotation: %w", err)
	}
	w.file = nil

	if err := w.shiftBackups(); err != nil {
		return err
	}

	if err := os.Rename(w.path, w.backupPath(1)); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	w.file = file
	w.size = 0
	return nil
}

// shiftBackups renames {path}.n to {path}.n+1 for existing backups,
// discarding the oldest when the backup count is at its limit.
// Caller must hold w.mu.
func (w *RotatingWriter) shiftBackups() error {
	// Remove the oldest backup if present
	oldest := w.backupPath(w.backups)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			return fmt.Errorf("failed to remove oldest backup: %w", err)
		}
	}

	// Shift remaining backups up by one
	for i := w.backups - 1; i >= 1; i-- {
		src := w.backupPath(i)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(src, w.backupPath(i+1)); err != nil {
			return fmt.Errorf("failed to shift backup %d: %w", i, err)
		}
	}

	return nil
}

// backupPath returns the path for backup number n.
func (w *RotatingWriter) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

// Sync flushes the current file to stable storage.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close syncs and closes the current file. Further writes fail.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("failed to sync log file: %w", err)
	}

	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// CurrentSize returns the size in bytes of the active log file.
func (w *RotatingWriter) CurrentSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// FilePath returns the path of the active log file.
func (w *RotatingWriter) FilePath() string {
	return w.path
}

// BackupPaths returns the paths of existing rotated backups, most
// recent first.
func (w *RotatingWriter) BackupPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var paths []string
	for i := 1; i <= w.backups; i++ {
		p := w.backupPath(i)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// RemoveRunLogs deletes the run log and any rotated backups inside runDir.
func RemoveRunLogs(runDir string, config RotationConfig) error {
	path := filepath.Join(runDir, LogFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	backups := config.MaxBackups
	if backups < 1 {
		backups = 1
	}
	for i := 1; i <= backups; i++ {
		p := fmt.Sprintf("%s.%d", path, i)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
