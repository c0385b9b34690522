package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/logging"
)

// BadgerConfig holds configuration for the embedded Badger backend.
type BadgerConfig struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
	// SyncWrites syncs each write to disk before acknowledging it.
	SyncWrites bool
	// Logger receives Badger's internal log output. Nil disables it.
	Logger *logging.Logger
}

// DefaultBadgerConfig returns the production configuration: durable
// synchronous writes at the given path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O, no
// sync overhead.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// BadgerStore keeps artifacts in an embedded Badger database, keyed
// artifact/<runID>/<taskID>. One database serves every run, which suits
// plans that produce many small artifacts.
type BadgerStore struct {
	db     *badger.DB
	closed atomic.Bool
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the database described by cfg.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.NewValidationError("badger store requires a path")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Put stores an artifact. Write-once is enforced inside a single
// transaction: the get either sees an existing artifact, or the commit-time
// conflict check catches a concurrent writer of the same key.
func (s *BadgerStore) Put(ctx context.Context, runID string, art *Artifact) error {
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
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}

	k := artifactKey(runID, art.TaskID)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(k)
		if getErr == nil {
			return errors.NewAlreadyExistsError("artifact", key(runID, art.TaskID))
		}
		if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return fmt.Errorf("checking artifact key: %w", getErr)
		}
		return txn.Set(k, data)
	})
	if err != nil {
		// A commit conflict means another transaction wrote this key first.
		if errors.Is(err, badger.ErrConflict) {
			return errors.NewAlreadyExistsError("artifact", key(runID, art.TaskID))
		}
		return err
	}
	return nil
}

// Get loads the artifact for (runID, taskID).
func (s *BadgerStore) Get(ctx context.Context, runID, taskID string) (*Artifact, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var art Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(artifactKey(runID, taskID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.NewNotFoundError("artifact", key(runID, taskID))
		}
		if err != nil {
			return fmt.Errorf("reading artifact: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &art)
		})
	})
	if err != nil {
		return nil, err
	}
	return &art, nil
}

// List returns metadata for every artifact stored for the run, ordered by
// phase and then task ID.
func (s *BadgerStore) List(ctx context.Context, runID string) ([]Ref, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	prefix := artifactKey(runID, "")
	refs := make([]Ref, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var art Artifact
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &art)
			})
			if err != nil {
				return fmt.Errorf("artifact %s corrupted: %w", it.Item().Key(), err)
			}
			refs = append(refs, art.Ref())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Phase != refs[j].Phase {
			return refs[i].Phase < refs[j].Phase
		}
		return refs[i].TaskID < refs[j].TaskID
	})
	return refs, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *BadgerStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	return ctx.Err()
}

func artifactKey(runID, taskID string) []byte {
	return []byte("artifact/" + runID + "/" + taskID)
}

// badgerLogger adapts the run logger to Badger's Logger interface.
type badgerLogger struct {
	logger *logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
