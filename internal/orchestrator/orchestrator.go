package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gantryhq/gantry/internal/artifact"
	"github.com/gantryhq/gantry/internal/engine"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/executor"
	"github.com/gantryhq/gantry/internal/gate"
	"github.com/gantryhq/gantry/internal/graph"
	"github.com/gantryhq/gantry/internal/logging"
	"github.com/gantryhq/gantry/internal/plan"
	"github.com/gantryhq/gantry/internal/run"
)

// Artifact backends.
const (
	BackendFS     = "fs"
	BackendBadger = "badger"

	// badgerDirName is the badger database directory under the data dir.
	badgerDirName = "artifacts.badger"
)

// Options configures an Orchestrator.
type Options struct {
	// DataDir is the root under which runs are persisted. Required.
	DataDir string
	// Concurrency bounds parallel task execution per run. The engine
	// default applies when zero.
	Concurrency int
	// Backend selects the artifact store: BackendFS (default) or
	// BackendBadger.
	Backend string
	// LogLevel is the per-run gantry.log level. "info" when empty.
	LogLevel string
	// Rotation controls per-run log rotation. Zero disables rotation.
	Rotation logging.RotationConfig
	// GateTimeout applies to manual gates that declare no timeout of
	// their own. Zero means such gates wait indefinitely.
	GateTimeout time.Duration
	// Registry resolves executor references. DefaultRegistry when nil.
	Registry *executor.Registry
	// Bus receives lifecycle events from every run. Optional.
	Bus *event.Bus
	// Logger receives orchestrator-level logs. Per-run logs go to the
	// run's own gantry.log regardless. Optional.
	Logger *logging.Logger
}

// Orchestrator starts runs and routes control operations to them, whether
// they live in this process, in another live process, or in no process.
type Orchestrator struct {
	opts      Options
	store     *run.Store
	artifacts artifact.Store
	registry  *executor.Registry
	bus       *event.Bus
	logger    *logging.Logger

	mu       sync.Mutex
	active   map[string]*activeRun
	finished map[string]*finishedRun
	closed   bool
}

// activeRun is a run owned by this process.
type activeRun struct {
	run    *run.Run
	gates  *gate.Set
	cancel context.CancelCauseFunc

	done   chan struct{}
	result *run.Result
	err    error
}

// finishedRun keeps a completed run's outcome answerable through Wait
// after the run itself, its gates, and its watcher have been released.
type finishedRun struct {
	result *run.Result
	err    error
}

// New creates an orchestrator rooted at opts.DataDir.
func New(opts Options) (*Orchestrator, error) {
	if opts.DataDir == "" {
		return nil, errors.NewValidationError("orchestrator needs a data directory").WithField("data_dir")
	}
	if opts.Backend == "" {
		opts.Backend = BackendFS
	}

	store := run.NewStore(opts.DataDir)

	var arts artifact.Store
	var err error
	switch opts.Backend {
	case BackendFS:
		arts, err = artifact.NewFSStore(store.RunsDir())
	case BackendBadger:
		arts, err = artifact.NewBadgerStore(artifact.BadgerConfig{
			Path: filepath.Join(opts.DataDir, badgerDirName),
		})
	default:
		return nil, errors.NewValidationError("unknown artifact backend").
			WithField("backend").WithValue(opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = executor.DefaultRegistry()
	}
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Orchestrator{
		opts:      opts,
		store:     store,
		artifacts: arts,
		registry:  registry,
		bus:       bus,
		logger:    logger,
		active:    make(map[string]*activeRun),
		finished:  make(map[string]*finishedRun),
	}, nil
}

// Store exposes the snapshot store for read-side surfaces such as the CLI
// and the watch view.
func (o *Orchestrator) Store() *run.Store {
	return o.store
}

// Bus exposes the event bus so observers can subscribe before Start.
func (o *Orchestrator) Bus() *event.Bus {
	return o.bus
}

// Start validates the plan, creates the run directory with its lock,
// control channel, and log, and launches the engine. It returns the run ID
// immediately; Wait blocks for the result.
func (o *Orchestrator) Start(ctx context.Context, p *plan.Plan) (string, error) {
	if p == nil {
		return "", errors.NewValidationError("start needs a plan")
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return "", err
	}
	g, err := graph.Build(p.TaskSpecs())
	if err != nil {
		return "", err
	}

	runID := run.NewID()
	r := run.New(runID, p.Name, g)
	runDir := o.store.RunDir(runID)

	if err := os.MkdirAll(o.store.ControlDir(runID), 0755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	var runLogger *logging.Logger
	if o.opts.Rotation.MaxSizeMB > 0 {
		runLogger, err = logging.NewLoggerWithRotation(runDir, o.logLevel(), o.opts.Rotation)
	} else {
		runLogger, err = logging.NewLogger(runDir, o.logLevel())
	}
	if err != nil {
		return "", err
	}
	lck, err := run.AcquireLock(runDir, runID, runLogger)
	if err != nil {
		_ = runLogger.Close()
		return "", err
	}

	cleanup := func() {
		_ = lck.Release()
		_ = runLogger.Close()
	}

	gates := o.buildGates(p)
	eng, err := engine.New(r, engine.Deps{
		Store:       o.store,
		Artifacts:   o.artifacts,
		Registry:    o.registry,
		Gates:       gates,
		Bus:         o.bus,
		Logger:      runLogger,
		Concurrency: o.opts.Concurrency,
	})
	if err != nil {
		cleanup()
		return "", err
	}

	// The snapshot exists before Start returns, so list and status see
	// the run even if no task has finished yet.
	if err := o.store.Save(r.Snapshot()); err != nil {
		cleanup()
		return "", err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	ar := &activeRun{
		run:    r,
		gates:  gates,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	watcher, err := newControlWatcher(o.store.ControlDir(runID), runLogger,
		func(gateID string, decision gate.Decision, by, comment string) error {
			return resolveGateIn(gates, gateID, decision, by, comment)
		},
		func(reason string) {
			cancel(errors.New(reason))
		})
	if err != nil {
		cancel(nil)
		cleanup()
		return "", err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		watcher.stop()
		cancel(nil)
		cleanup()
		return "", errors.New("orchestrator is closed")
	}
	o.active[runID] = ar
	o.mu.Unlock()

	watcher.start()
	o.logger.Info("run started", "run_id", runID, "plan", p.Name)

	go func() {
		defer close(ar.done)
		ar.result, ar.err = eng.Run(runCtx)
		if ar.err != nil {
			runLogger.Error("engine failed", "error", ar.err)
		}
		watcher.stop()
		cancel(nil)
		cleanup()

		// The run leaves the active table once its lock is released, so
		// later control operations take the dead-run paths and the engine
		// becomes collectible. Only the outcome is retained, for Wait.
		o.mu.Lock()
		delete(o.active, runID)
		o.finished[runID] = &finishedRun{result: ar.result, err: ar.err}
		o.mu.Unlock()
	}()

	return runID, nil
}

// Wait blocks until the run this process owns reaches a terminal status.
// It keeps answering after the run finishes and is evicted.
func (o *Orchestrator) Wait(runID string) (*run.Result, error) {
	o.mu.Lock()
	ar, ok := o.active[runID]
	if !ok {
		fin, finished := o.finished[runID]
		o.mu.Unlock()
		if finished {
			return fin.result, fin.err
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrRunNotFound, runID)
	}
	o.mu.Unlock()
	<-ar.done
	return ar.result, ar.err
}

// Status returns the run's snapshot, from memory for runs this process
// owns and from run.json for everything else.
func (o *Orchestrator) Status(runID string) (*run.Snapshot, error) {
	o.mu.Lock()
	ar, ok := o.active[runID]
	o.mu.Unlock()
	if ok {
		return ar.run.Snapshot(), nil
	}
	return o.store.Load(runID)
}

// ResolveGate applies an approve or reject decision to a pending gate. For
// runs owned by another live process the decision is dropped into the
// run's control directory instead; a dead run cannot take decisions.
func (o *Orchestrator) ResolveGate(runID, gateID string, decision gate.Decision, by, comment string) error {
	if decision != gate.DecisionApproved && decision != gate.DecisionRejected {
		return errors.NewValidationError("gate decision must be approved or rejected").
			WithField("decision").WithValue(string(decision))
	}

	o.mu.Lock()
	ar, ok := o.active[runID]
	o.mu.Unlock()
	if ok {
		return resolveGateIn(ar.gates, gateID, decision, by, comment)
	}

	if !o.store.Exists(runID) {
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, runID)
	}
	if _, live := run.IsLocked(o.store.RunDir(runID)); live {
		if err := WriteGateDecision(o.store.ControlDir(runID), gateID, decision, by, comment); err != nil {
			return err
		}
		o.logger.Info("gate decision dropped for owning process",
			"run_id", runID, "gate_id", gateID, "decision", decision)
		return nil
	}
	return fmt.Errorf("%w: %s", errors.ErrRunNotLive, runID)
}

// Abort ends a run. Runs owned by this process are cancelled; runs owned
// by another live process get an abort drop file; dead unfinished runs
// have their snapshot rewritten to aborted directly.
func (o *Orchestrator) Abort(runID, reason string) error {
	if reason == "" {
		reason = "aborted by operator"
	}

	o.mu.Lock()
	ar, ok := o.active[runID]
	o.mu.Unlock()
	if ok {
		ar.cancel(errors.New(reason))
		return nil
	}

	if !o.store.Exists(runID) {
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, runID)
	}
	if _, live := run.IsLocked(o.store.RunDir(runID)); live {
		if err := WriteAbort(o.store.ControlDir(runID), reason); err != nil {
			return err
		}
		o.logger.Info("abort dropped for owning process", "run_id", runID, "reason", reason)
		return nil
	}
	return o.abortDead(runID, reason)
}

// abortDead rewrites the snapshot of a run whose owner died, skipping
// every unfinished task, and clears the stale lock.
func (o *Orchestrator) abortDead(runID, reason string) error {
	snap, err := o.store.Load(runID)
	if err != nil {
		return err
	}
	if snap.Status.IsTerminal() {
		return fmt.Errorf("%w: run is %s", errors.ErrRunFinished, snap.Status)
	}

	now := time.Now()
	for id, inst := range snap.Tasks {
		if !inst.Status.IsTerminal() {
			inst.Status = run.TaskSkipped
			inst.FinishedAt = &now
			snap.Tasks[id] = inst
		}
	}
	snap.Status = run.StatusAborted
	snap.Reason = reason
	snap.AwaitingGate = ""
	snap.FinishedAt = &now

	if err := o.store.Save(snap); err != nil {
		return err
	}
	if _, err := run.CleanStaleLock(o.store.RunDir(runID), o.logger); err != nil {
		o.logger.Warn("cleaning stale lock failed", "run_id", runID, "error", err)
	}
	o.logger.Info("dead run aborted", "run_id", runID, "reason", reason)
	return nil
}

// List returns summaries of every persisted run, newest first.
func (o *Orchestrator) List() ([]*run.Info, error) {
	return o.store.List()
}

// Close aborts every run this process owns, waits for them to finish, and
// closes the artifact store.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	running := make([]*activeRun, 0, len(o.active))
	for _, ar := range o.active {
		running = append(running, ar)
	}
	o.mu.Unlock()

	for _, ar := range running {
		ar.cancel(errors.New("orchestrator closing"))
	}
	for _, ar := range running {
		<-ar.done
	}
	return o.artifacts.Close()
}

func (o *Orchestrator) logLevel() string {
	if o.opts.LogLevel == "" {
		return "info"
	}
	return o.opts.LogLevel
}

// buildGates materializes the plan's gate entries, applying the configured
// default timeout to manual gates that declare none.
func (o *Orchestrator) buildGates(p *plan.Plan) *gate.Set {
	gates := make([]*gate.Gate, 0, len(p.Gates))
	for _, entry := range p.Gates {
		timeout := entry.Timeout.Std()
		if timeout == 0 && !entry.AutoApprove && o.opts.GateTimeout > 0 {
			timeout = o.opts.GateTimeout
		}
		gates = append(gates, gate.New(entry.ID, entry.AfterPhase, entry.AutoApprove, timeout))
	}
	return gate.NewSet(gates...)
}

// resolveGateIn resolves a gate by ID within a set.
func resolveGateIn(gates *gate.Set, gateID string, decision gate.Decision, by, comment string) error {
	gt, ok := gates.Get(gateID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrGateNotFound, gateID)
	}
	return gt.Resolve(decision, by, comment)
}
