package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/logging"
)

// LockFileName is the liveness lock file inside a run directory.
const LockFileName = "run.lock"

// Lock marks a run directory as owned by a live orchestrator process.
// Liveness is tied to the owner's PID: a crashed owner leaves a stale lock
// that the next acquirer detects and cleans.
type Lock struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	// Internal fields (not serialized)
	lockPath string
	logger   *logging.Logger
}

// AcquireLock takes exclusive ownership of a run directory. It fails with
// ErrRunLocked when another live process holds the lock; a stale lock from
// a dead process is removed first. The logger may be nil.
func AcquireLock(runDir, runID string, logger *logging.Logger) (*Lock, error) {
	lockPath := filepath.Join(runDir, LockFileName)

	if existing, err := ReadLock(lockPath); err == nil {
		if processAlive(existing.PID) {
			return nil, fmt.Errorf("%w: PID %d on %s", errors.ErrRunLocked, existing.PID, existing.Hostname)
		}
		oldPID := existing.PID
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale lock: %w", err)
		}
		if logger != nil {
			logger.Warn("stale run lock cleaned", "run_id", runID, "old_pid", oldPID)
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		RunID:     runID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		lockPath:  lockPath,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling lock: %w", err)
	}

	// O_EXCL makes creation the atomic claim; a concurrent acquirer that
	// loses the race sees the file exist.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			if existing, readErr := ReadLock(lockPath); readErr == nil {
				return nil, fmt.Errorf("%w: PID %d on %s", errors.ErrRunLocked, existing.PID, existing.Hostname)
			}
			return nil, errors.ErrRunLocked
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	if logger != nil {
		logger.Info("run lock acquired", "run_id", runID, "pid", lock.PID)
	}
	return lock, nil
}

// Release removes the lock file if this process still owns it. Safe to
// call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.lockPath == "" {
		return nil
	}

	existing, err := ReadLock(l.lockPath)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		// Not our lock anymore; leave it alone.
		return nil
	}

	if err := os.Remove(l.lockPath); err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Info("run lock released", "run_id", l.RunID)
	}
	return nil
}

// ReadLock reads a lock file.
func ReadLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	lock.lockPath = lockPath
	return &lock, nil
}

// IsLocked reports whether a live process owns the run directory.
// Returns the lock info when a lock file exists, even a stale one.
func IsLocked(runDir string) (*Lock, bool) {
	lock, err := ReadLock(filepath.Join(runDir, LockFileName))
	if err != nil {
		return nil, false
	}
	if !processAlive(lock.PID) {
		return lock, false
	}
	return lock, true
}

// CleanStaleLock removes the lock file if the owning process is gone.
// Returns true when a stale lock was cleaned. The logger may be nil.
func CleanStaleLock(runDir string, logger *logging.Logger) (bool, error) {
	lockPath := filepath.Join(runDir, LockFileName)

	lock, err := ReadLock(lockPath)
	if err != nil {
		return false, nil
	}
	if processAlive(lock.PID) {
		return false, nil
	}

	if err := os.Remove(lockPath); err != nil {
		return false, fmt.Errorf("removing stale lock: %w", err)
	}
	if logger != nil {
		logger.Warn("stale run lock cleaned", "run_id", lock.RunID, "old_pid", lock.PID)
	}
	return true, nil
}

// processAlive checks whether a process with the given PID exists by
// sending signal 0.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
