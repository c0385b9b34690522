package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
)

// FSStore persists each artifact as one JSON document under
// <runs dir>/<runID>/artifacts/phase-<n>/<taskID>.json.
//
// Put writes to a temp file, syncs it, and then hard-links it into place.
// The link is the write-once barrier within a phase directory: it either
// publishes the fully written file atomically or fails because an artifact
// is already there. Duplicates in other phase directories would not collide
// on the link, so Put serializes its cross-phase key check behind putMu.
// Reads take no locks and never see a partial document.
type FSStore struct {
	runsDir string
	putMu   sync.Mutex
	closed  atomic.Bool
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates a filesystem store rooted at the given runs directory.
// The directory is created if it does not exist.
func NewFSStore(runsDir string) (*FSStore, error) {
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact root: %w", err)
	}
	return &FSStore{runsDir: runsDir}, nil
}

// Put stores an artifact. The second Put for the same (runID, taskID) fails
// with *errors.AlreadyExistsError.
func (s *FSStore) Put(ctx context.Context, runID string, art *Artifact) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if art == nil || art.TaskID == "" {
		return errors.NewValidationError("artifact has no task ID")
	}
	if runID == "" {
		return errors.NewValidationError("artifact has no run ID")
	}

	stored := *art
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	// A duplicate in another phase directory would not collide on the final
	// link, so the key check runs against all phases first. The check and
	// the link below hold putMu so two concurrent Puts for the same task
	// cannot both pass it.
	s.putMu.Lock()
	defer s.putMu.Unlock()
	if _, err := s.find(runID, art.TaskID); err == nil {
		return errors.NewAlreadyExistsError("artifact", key(runID, art.TaskID))
	}

	dir := filepath.Join(s.runDir(runID), fmt.Sprintf("phase-%d", stored.Phase))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating phase directory: %w", err)
	}

	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	final := filepath.Join(dir, art.TaskID+".json")
	if err := os.Link(tmpPath, final); err != nil {
		if os.IsExist(err) {
			return errors.NewAlreadyExistsError("artifact", key(runID, art.TaskID))
		}
		return fmt.Errorf("publishing artifact: %w", err)
	}
	return nil
}

// Get loads the artifact for (runID, taskID).
func (s *FSStore) Get(ctx context.Context, runID, taskID string) (*Artifact, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	path, err := s.find(runID, taskID)
	if err != nil {
		return nil, err
	}
	return readArtifact(path)
}

// List returns metadata for every artifact stored for the run, ordered by
// phase and then task ID. A run with no artifacts yields an empty list.
func (s *FSStore) List(ctx context.Context, runID string) ([]Ref, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(s.runDir(runID), "phase-*", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	refs := make([]Ref, 0, len(matches))
	for _, path := range matches {
		art, err := readArtifact(path)
		if err != nil {
			return nil, err
		}
		refs = append(refs, art.Ref())
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Phase != refs[j].Phase {
			return refs[i].Phase < refs[j].Phase
		}
		return refs[i].TaskID < refs[j].TaskID
	})
	return refs, nil
}

// Close marks the store closed. It holds no OS resources beyond per-call
// file handles, so closing only flips the gate that later calls check.
func (s *FSStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *FSStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	return ctx.Err()
}

func (s *FSStore) runDir(runID string) string {
	return filepath.Join(s.runsDir, runID, "artifacts")
}

// find locates the artifact file for a task across all phase directories.
func (s *FSStore) find(runID, taskID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.runDir(runID), "phase-*", taskID+".json"))
	if err != nil {
		return "", fmt.Errorf("locating artifact: %w", err)
	}
	if len(matches) == 0 {
		return "", errors.NewNotFoundError("artifact", key(runID, taskID))
	}
	return matches[0], nil
}

func readArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("artifact %s corrupted: %w", filepath.Base(path), err)
	}
	return &art, nil
}

func key(runID, taskID string) string {
	return runID + "/" + taskID
}
