package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/gate"
	"github.com/gantryhq/gantry/internal/logging"
)

const (
	// abortFileName is the drop file requesting an abort.
	abortFileName = "abort.json"
	// gateFilePrefix prefixes gate decision drop files: gate-<gateID>.json.
	gateFilePrefix = "gate-"

	// controlDebounce coalesces bursts of filesystem events before a scan.
	controlDebounce = 50 * time.Millisecond
	// controlPollInterval rescans even without events, so a decision
	// dropped before its gate went pending is retried.
	controlPollInterval = time.Second
)

// gateDecisionFile is the wire format of a gate decision drop file.
type gateDecisionFile struct {
	GateID     string `json:"gate_id"`
	Decision   string `json:"decision"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

// abortFile is the wire format of an abort drop file.
type abortFile struct {
	Reason string `json:"reason,omitempty"`
}

// WriteGateDecision drops a gate decision into a run's control directory
// for the owning orchestrator to apply.
func WriteGateDecision(controlDir, gateID string, decision gate.Decision, by, comment string) error {
	if gateID == "" {
		return errors.NewValidationError("gate decision needs a gate ID").WithField("gate_id")
	}
	if decision != gate.DecisionApproved && decision != gate.DecisionRejected {
		return errors.NewValidationError("gate decision must be approved or rejected").
			WithField("decision").WithValue(string(decision))
	}
	data, err := json.MarshalIndent(gateDecisionFile{
		GateID:     gateID,
		Decision:   string(decision),
		ResolvedBy: by,
		Comment:    comment,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling gate decision: %w", err)
	}
	return writeControlFile(controlDir, gateFilePrefix+gateID+".json", data)
}

// WriteAbort drops an abort request into a run's control directory.
func WriteAbort(controlDir, reason string) error {
	data, err := json.MarshalIndent(abortFile{Reason: reason}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling abort request: %w", err)
	}
	return writeControlFile(controlDir, abortFileName, data)
}

// writeControlFile writes atomically via temp file and rename, so the
// watcher on the other side never reads a partial document.
func writeControlFile(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating control directory: %w", err)
	}

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
		return fmt.Errorf("writing control file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing control file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing control file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting control file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("publishing control file: %w", err)
	}
	success = true
	return nil
}

// controlWatcher applies drop files from a run's control directory to the
// live run that owns it.
type controlWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
	logger  *logging.Logger

	resolve func(gateID string, decision gate.Decision, by, comment string) error
	abort   func(reason string)

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newControlWatcher(
	dir string,
	logger *logging.Logger,
	resolve func(gateID string, decision gate.Decision, by, comment string) error,
	abort func(reason string),
) (*controlWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating control watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching control directory: %w", err)
	}
	return &controlWatcher{
		dir:     dir,
		watcher: watcher,
		logger:  logger,
		resolve: resolve,
		abort:   abort,
		stopCh:  make(chan struct{}),
	}, nil
}

func (w *controlWatcher) start() {
	go w.watchLoop()
}

func (w *controlWatcher) stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

// watchLoop debounces filesystem events and rescans on a slow ticker so no
// drop file is ever missed.
func (w *controlWatcher) watchLoop() {
	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	poll := time.NewTicker(controlPollInterval)
	defer poll.Stop()

	// Files may predate the watcher: a decision can be dropped between
	// run creation and this loop starting.
	w.apply()

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(controlDebounce)

		case <-debounce.C:
			w.apply()

		case <-poll.C:
			w.apply()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("control watcher error", "error", err)
		}
	}
}

// apply scans the control directory and applies every drop file it can.
// Gate decisions whose gate is not pending yet stay on disk for the next
// scan; anything unreadable is removed so it cannot wedge the loop.
func (w *controlWatcher) apply() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("reading control directory failed", "error", err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		path := filepath.Join(w.dir, name)

		switch {
		case name == abortFileName:
			w.applyAbort(path)
		case strings.HasPrefix(name, gateFilePrefix) && strings.HasSuffix(name, ".json"):
			w.applyGateDecision(path)
		}
	}
}

func (w *controlWatcher) applyAbort(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading abort file failed", "error", err)
		return
	}
	var req abortFile
	if err := json.Unmarshal(data, &req); err != nil {
		w.logger.Warn("discarding malformed abort file", "error", err)
		_ = os.Remove(path)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "aborted via control file"
	}
	_ = os.Remove(path)
	w.logger.Info("abort request received", "reason", reason)
	w.abort(reason)
}

func (w *controlWatcher) applyGateDecision(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading gate decision failed", "file", path, "error", err)
		return
	}
	var req gateDecisionFile
	if err := json.Unmarshal(data, &req); err != nil {
		w.logger.Warn("discarding malformed gate decision", "file", path, "error", err)
		_ = os.Remove(path)
		return
	}

	decision := gate.Decision(req.Decision)
	if req.GateID == "" || (decision != gate.DecisionApproved && decision != gate.DecisionRejected) {
		w.logger.Warn("discarding invalid gate decision",
			"gate_id", req.GateID, "decision", req.Decision)
		_ = os.Remove(path)
		return
	}

	err = w.resolve(req.GateID, decision, req.ResolvedBy, req.Comment)
	switch {
	case err == nil:
		w.logger.Info("gate decision applied",
			"gate_id", req.GateID, "decision", decision, "by", req.ResolvedBy)
		_ = os.Remove(path)
	case errors.Is(err, errors.ErrGateNotPending):
		// Dropped before the run reached the gate; the poll ticker
		// retries once the gate goes pending.
	default:
		w.logger.Warn("discarding unappliable gate decision",
			"gate_id", req.GateID, "error", err)
		_ = os.Remove(path)
	}
}
