package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gantryhq/gantry/internal/errors"
)

const (
	// RunsDirName is the directory under the data dir that holds all runs.
	RunsDirName = "runs"

	// SnapshotFileName is the run state file inside a run directory.
	SnapshotFileName = "run.json"

	// ControlDirName is the drop-file directory inside a run directory.
	ControlDirName = "control"
)

// Store persists run snapshots as JSON documents under a data directory,
// one directory per run:
//
//	<dataDir>/runs/<runID>/run.json
//
// Writes go through a temp file and rename so a reader or crash recovery
// never observes a partial snapshot. The engine is the only writer for a
// live run; cross-process writes happen only after the owning process died
// and its lock went stale.
type Store struct {
	dataDir string
}

// NewStore creates a Store rooted at the given data directory.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// RunsDir returns the directory containing all run directories.
func (s *Store) RunsDir() string {
	return filepath.Join(s.dataDir, RunsDirName)
}

// RunDir returns the directory for a single run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.RunsDir(), runID)
}

// ControlDir returns the drop-file directory for a run.
func (s *Store) ControlDir(runID string) string {
	return filepath.Join(s.RunDir(runID), ControlDirName)
}

// SnapshotPath returns the run.json path for a run.
func (s *Store) SnapshotPath(runID string) string {
	return filepath.Join(s.RunDir(runID), SnapshotFileName)
}

// Save writes the snapshot atomically, creating the run directory if
// needed.
func (s *Store) Save(snap *Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.NewValidationError("snapshot must carry a run ID").WithField("id")
	}

	dir := s.RunDir(snap.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}

	return atomicWriteFile(filepath.Join(dir, SnapshotFileName), data)
}

// Load reads the persisted snapshot for the given run.
func (s *Store) Load(runID string) (*Snapshot, error) {
	data, err := os.ReadFile(s.SnapshotPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("reading run state: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrRunCorrupted, runID, err)
	}
	return &snap, nil
}

// Exists reports whether a persisted run with the given ID exists.
func (s *Store) Exists(runID string) bool {
	_, err := os.Stat(s.SnapshotPath(runID))
	return err == nil
}

// Describe returns summary information for a single run, including
// whether a live process owns its lock.
func (s *Store) Describe(runID string) (*Info, error) {
	snap, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	runDir := s.RunDir(runID)
	lock, live := IsLocked(runDir)

	info := &Info{
		ID:        snap.ID,
		Plan:      snap.Plan,
		Status:    snap.Status,
		TaskCount: len(snap.Tasks),
		CreatedAt: snap.CreatedAt,
		RunDir:    runDir,
		Live:      live,
	}
	if live && lock != nil {
		info.OwnerPID = lock.PID
	}
	return info, nil
}

// List returns summary information for every persisted run, newest first.
// Runs whose state cannot be read are skipped.
func (s *Store) List() ([]*Info, error) {
	entries, err := os.ReadDir(s.RunsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var infos []*Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := s.Describe(entry.Name())
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// atomicWriteFile writes data to path via a temp file in the same
// directory, syncing before the rename so a crash cannot leave a partial
// file behind.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
