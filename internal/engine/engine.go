package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/gantryhq/gantry/internal/artifact"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/executor"
	"github.com/gantryhq/gantry/internal/gate"
	"github.com/gantryhq/gantry/internal/graph"
	"github.com/gantryhq/gantry/internal/logging"
	"github.com/gantryhq/gantry/internal/run"
)

// DefaultConcurrency bounds parallel task execution when Deps does not set
// a limit.
const DefaultConcurrency = 4

// Deps bundles the collaborators an engine needs besides the run itself.
type Deps struct {
	// Store persists run snapshots. Required.
	Store *run.Store
	// Artifacts persists task outputs. Required.
	Artifacts artifact.Store
	// Registry resolves the executor names tasks reference. Required.
	Registry *executor.Registry
	// Gates holds the run's checkpoint gates. Optional.
	Gates *gate.Set
	// Bus receives lifecycle events. Optional.
	Bus *event.Bus
	// Logger receives structured logs. Optional.
	Logger *logging.Logger
	// Concurrency bounds parallel task execution. DefaultConcurrency when
	// zero or negative.
	Concurrency int
}

// Engine executes one run to a terminal status. An engine is single-use.
type Engine struct {
	run       *run.Run
	store     *run.Store
	artifacts artifact.Store
	registry  *executor.Registry
	gates     *gate.Set
	bus       *event.Bus
	logger    *logging.Logger
	workers   int
}

// completion carries one finished task from its worker to the engine loop.
type completion struct {
	spec     graph.TaskSpec
	art      *artifact.Artifact
	err      error
	attempts int
	started  time.Time
}

// New creates an engine for the given run. Every executor the graph names
// must already be registered; a dangling reference fails here rather than
// mid-run.
func New(r *run.Run, deps Deps) (*Engine, error) {
	if r == nil {
		return nil, errors.NewValidationError("engine needs a run")
	}
	if deps.Store == nil || deps.Artifacts == nil || deps.Registry == nil {
		return nil, errors.NewValidationError(
			"engine needs a snapshot store, an artifact store, and an executor registry")
	}
	for _, spec := range r.Graph().Tasks() {
		if !deps.Registry.Has(spec.Executor) {
			return nil, fmt.Errorf("%w: %s (task %s)", errors.ErrUnknownExecutor, spec.Executor, spec.ID)
		}
	}

	gates := deps.Gates
	if gates == nil {
		gates = gate.NewSet()
	}
	bus := deps.Bus
	if bus == nil {
		bus = event.NewBus()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	workers := deps.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}

	return &Engine{
		run:       r,
		store:     deps.Store,
		artifacts: deps.Artifacts,
		registry:  deps.Registry,
		gates:     gates,
		bus:       bus,
		logger:    logger.WithRun(r.ID()),
		workers:   workers,
	}, nil
}

// Run drives the run to a terminal status and returns its result.
//
// A run that ends aborted (fatal task, rejected or timed-out gate, operator
// cancellation) is an orderly outcome: the result carries the aborted status
// and the error is nil. A non-nil error means the engine itself failed (an
// invalid starting state or an unusable final snapshot).
func (e *Engine) Run(ctx context.Context) (*run.Result, error) {
	if err := e.run.Start(); err != nil {
		return nil, err
	}
	g := e.run.Graph()
	e.bus.Publish(event.NewRunStartedEvent(e.run.ID(), e.run.PlanName(), g.Len(), g.PhaseCount()))
	e.logger.Info("run started",
		"plan", e.run.PlanName(), "tasks", g.Len(), "phases", g.PhaseCount(), "workers", e.workers)
	e.save()

	for _, phase := range g.Phases() {
		if ctx.Err() != nil {
			return e.abort(cancelReason(ctx), "")
		}
		e.run.SetPhase(phase)
		e.save()

		finished, err := e.runPhase(ctx, phase)
		if finished != nil || err != nil {
			return finished, err
		}
		if finished, err := e.waitGate(ctx, phase); finished != nil || err != nil {
			return finished, err
		}
	}

	if err := e.run.Complete(); err != nil {
		return nil, err
	}
	result := e.run.Result()
	c := result.Counts
	e.bus.Publish(event.NewRunCompletedEvent(
		e.run.ID(), result.Status.String(), c.Succeeded, c.Failed, c.Skipped, ""))
	e.logger.Info("run finished",
		"status", result.Status, "succeeded", c.Succeeded, "failed", c.Failed, "skipped", c.Skipped)
	if err := e.saveFinal(); err != nil {
		return result, err
	}
	return result, nil
}

// runPhase drives one phase until every task in it is terminal. A non-nil
// result means the run was aborted inside the phase.
func (e *Engine) runPhase(ctx context.Context, phase int) (*run.Result, error) {
	log := e.logger.WithPhase(phase)

	// A phase can arrive fully settled when an earlier failure cascaded
	// through it. The barrier still publishes so observers see the phase.
	if e.run.PhaseTerminal(phase) {
		e.publishPhaseCompleted(phase)
		return nil, nil
	}
	log.Info("phase started", "tasks", len(e.run.Graph().TasksInPhase(phase)))

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to the phase size so workers never block reporting, even
	// while the loop is busy or draining an abort.
	completions := make(chan completion, len(e.run.Graph().TasksInPhase(phase)))
	workers := pool.New().WithMaxGoroutines(e.workers)

	inflight := e.dispatch(phaseCtx, phase, workers, completions)

	aborting := false
	var abortReason, abortCause string

	for {
		if !aborting && e.run.PhaseTerminal(phase) {
			break
		}
		if inflight == 0 {
			if aborting {
				workers.Wait()
				return e.abort(abortReason, abortCause)
			}
			// Nothing running and nothing ready, yet the phase is not
			// terminal. Cannot happen on a validated graph.
			return nil, errors.New("phase stalled with no runnable tasks")
		}

		select {
		case <-ctx.Done():
			workers.Wait()
			return e.abort(cancelReason(ctx), "")

		case c := <-completions:
			inflight--
			if aborting {
				// Late result from a cancelled sibling; the task is
				// settled as skipped when the abort lands.
				log.Debug("discarding late result", "task_id", c.spec.ID)
				continue
			}
			outcome := e.settle(c)
			if ShouldAbort(outcome) {
				aborting = true
				abortReason = fmt.Sprintf("fatal task %s failed", c.spec.ID)
				abortCause = c.spec.ID
				log.Warn("fatal failure, cancelling phase", "task_id", c.spec.ID)
				cancel()
				continue
			}
			inflight += e.dispatch(phaseCtx, phase, workers, completions)
		}
	}

	workers.Wait()
	e.publishPhaseCompleted(phase)
	e.save()
	return nil, nil
}

// dispatch hands every currently ready task in the phase to the worker pool
// and returns how many it started.
func (e *Engine) dispatch(ctx context.Context, phase int, workers *pool.Pool, out chan<- completion) int {
	started := 0
	for _, taskID := range e.run.ReadyTasks(phase) {
		spec, ok := e.run.Graph().Task(taskID)
		if !ok {
			continue
		}
		if err := e.run.MarkReady(taskID); err != nil {
			e.logger.WithTask(taskID).Error("marking ready failed", "error", err)
			continue
		}
		started++
		workers.Go(func() {
			out <- e.execute(ctx, spec)
		})
	}
	return started
}

// execute runs one task to its final result, spending retries. The artifact
// is persisted before success is reported, so a dependent dispatched on the
// strength of the completion always finds its input.
func (e *Engine) execute(ctx context.Context, spec graph.TaskSpec) completion {
	c := completion{spec: spec, started: time.Now()}
	log := e.logger.WithTask(spec.ID)

	exec, err := e.registry.Get(spec.Executor)
	if err != nil {
		c.err = err
		return c
	}

	maxAttempts := spec.MaxRetries + 1
	for {
		if err := ctx.Err(); err != nil {
			c.err = err
			return c
		}
		attempt, err := e.run.MarkStarted(spec.ID)
		if err != nil {
			c.err = err
			return c
		}
		c.attempts = attempt
		e.bus.Publish(event.NewTaskStartedEvent(e.run.ID(), spec.ID, spec.Phase, spec.Executor, attempt))
		log.Info("task started", "executor", spec.Executor, "attempt", attempt)

		art, err := e.runAttempt(ctx, exec, &spec)
		if err == nil {
			if art == nil {
				// Success with no output still commits a record so
				// dependents and the status surface see the task.
				art = &artifact.Artifact{TaskID: spec.ID, Phase: spec.Phase, ContentType: spec.ContentType}
			}
			if perr := e.artifacts.Put(ctx, e.run.ID(), art); perr != nil {
				c.err = errors.Wrapf(perr, "storing artifact for %s", spec.ID)
				return c
			}
			c.art = art
			return c
		}

		c.err = err
		if ctx.Err() != nil {
			return c
		}
		if attempt >= maxAttempts {
			return c
		}
		log.Warn("task attempt failed, retrying",
			"attempt", attempt, "max_attempts", maxAttempts, "error", err)
	}
}

// runAttempt executes a single attempt under the task's timeout.
func (e *Engine) runAttempt(ctx context.Context, exec executor.Executor, spec *graph.TaskSpec) (*artifact.Artifact, error) {
	attemptCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	inputs, err := e.collectInputs(attemptCtx, spec)
	if err != nil {
		return nil, err
	}
	art, err := exec.Execute(attemptCtx, spec, inputs)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, errors.NewTimeoutError(fmt.Sprintf("task %s", spec.ID), spec.Timeout)
	}
	return art, err
}

// collectInputs loads one input per declared dependency, concurrently.
// Required dependencies have succeeded by the ready rule, so their
// artifacts must exist; optional dependencies that went terminal without
// succeeding yield missing markers instead.
func (e *Engine) collectInputs(ctx context.Context, spec *graph.TaskSpec) (executor.Inputs, error) {
	deps := e.run.Graph().DependenciesOf(spec.ID)
	if len(deps) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inputs := make(executor.Inputs, len(ids))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, depID := range ids {
		eg.Go(func() error {
			inst, ok := e.run.Task(depID)
			if !ok {
				return fmt.Errorf("%w: %s", errors.ErrTaskNotFound, depID)
			}
			if inst.Status == run.TaskSucceeded {
				art, err := e.artifacts.Get(egCtx, e.run.ID(), depID)
				if err != nil {
					return errors.Wrapf(err, "loading input %s", depID)
				}
				inputs[i] = executor.Input{TaskID: depID, Kind: deps[depID], Artifact: art}
				return nil
			}
			reason := fmt.Sprintf("dependency %s %s", depID, inst.Status)
			if inst.Status == run.TaskSkipped && inst.Cause != "" {
				reason = fmt.Sprintf("dependency %s skipped (cause: %s)", depID, inst.Cause)
			}
			inputs[i] = executor.Input{TaskID: depID, Kind: deps[depID], Missing: true, Reason: reason}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

// settle records one finished task. It runs only on the engine loop, so
// completions are applied in a single total order.
func (e *Engine) settle(c completion) Outcome {
	runID := e.run.ID()
	log := e.logger.WithTask(c.spec.ID)
	outcome := Classify(&c.spec, c.err)

	if outcome == OutcomeSucceeded {
		if err := e.run.MarkSucceeded(c.spec.ID, artifactRef(runID, c.spec.ID)); err != nil {
			log.Error("recording success failed", "error", err)
			return outcome
		}
		e.bus.Publish(event.NewTaskSucceededEvent(runID, c.spec.ID, c.spec.Phase, time.Since(c.started)))
		if c.art != nil {
			e.bus.Publish(event.NewArtifactStoredEvent(
				runID, c.spec.ID, c.spec.Phase, c.art.ContentType, len(c.art.Payload)))
		}
		log.Info("task succeeded", "attempts", c.attempts, "duration", time.Since(c.started))
		e.save()
		return outcome
	}

	if err := e.run.MarkFailed(c.spec.ID, c.err.Error()); err != nil {
		log.Error("recording failure failed", "error", err)
		return outcome
	}
	e.bus.Publish(event.NewTaskFailedEvent(
		runID, c.spec.ID, c.spec.Phase, c.spec.Fatal, c.err.Error(), c.attempts))
	log.Warn("task failed", "attempts", c.attempts, "fatal", c.spec.Fatal, "error", c.err)

	for _, skippedID := range e.run.CascadeSkip(c.spec.ID) {
		e.publishSkip(skippedID, c.spec.ID)
	}
	e.save()
	return outcome
}

// waitGate evaluates the gate guarding the given phase, blocking until it
// resolves. A nil, nil return means the run proceeds to the next phase.
func (e *Engine) waitGate(ctx context.Context, phase int) (*run.Result, error) {
	gt, ok := e.gates.After(phase)
	if !ok {
		return nil, nil
	}
	log := e.logger.WithGate(gt.ID())
	snap := gt.Snapshot()

	// Auto gates resolve inside Enter, so the run never shows as paused.
	if !snap.AutoApprove {
		if err := e.run.AwaitGate(gt.ID()); err != nil {
			return nil, err
		}
		e.save()
	}
	if err := gt.Enter(); err != nil {
		return nil, err
	}
	e.bus.Publish(event.NewGateEnteredEvent(e.run.ID(), gt.ID(), phase, snap.AutoApprove))
	log.Info("gate entered", "auto_approve", snap.AutoApprove, "timeout", snap.Timeout)

	res, err := gt.Decision(ctx)
	if err != nil {
		return e.abort(cancelReason(ctx), "")
	}

	e.run.RecordGate(run.GateRecord{
		GateID:     gt.ID(),
		AfterPhase: phase,
		Decision:   string(res.Decision),
		ResolvedBy: res.ResolvedBy,
		Comment:    res.Comment,
		ResolvedAt: res.ResolvedAt,
	})
	e.bus.Publish(event.NewGateResolvedEvent(
		e.run.ID(), gt.ID(), event.GateDecision(res.Decision), res.ResolvedBy, res.Comment))
	log.Info("gate resolved", "decision", res.Decision, "by", res.ResolvedBy)

	if !res.Approved() {
		return e.abort(fmt.Sprintf("gate %s %s", gt.ID(), res.Decision), "")
	}
	if !snap.AutoApprove {
		if err := e.run.Resume(); err != nil {
			return nil, err
		}
	}
	e.save()
	return nil, nil
}

// abort ends the run, skipping everything unfinished. cause is the task ID
// recorded on skipped instances, empty for gate and operator aborts.
func (e *Engine) abort(reason, cause string) (*run.Result, error) {
	skipped := e.run.SkipRemaining(cause)
	if err := e.run.Abort(reason); err != nil {
		return nil, err
	}
	for _, taskID := range skipped {
		e.publishSkip(taskID, cause)
	}
	result := e.run.Result()
	c := result.Counts
	e.bus.Publish(event.NewRunCompletedEvent(
		e.run.ID(), result.Status.String(), c.Succeeded, c.Failed, c.Skipped, reason))
	e.logger.Warn("run aborted", "reason", reason,
		"succeeded", c.Succeeded, "failed", c.Failed, "skipped", c.Skipped)
	if err := e.saveFinal(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) publishSkip(taskID, fallbackCause string) {
	spec, _ := e.run.Graph().Task(taskID)
	cause := fallbackCause
	if inst, ok := e.run.Task(taskID); ok && inst.Cause != "" {
		cause = inst.Cause
	}
	e.bus.Publish(event.NewTaskSkippedEvent(e.run.ID(), taskID, spec.Phase, cause))
	e.logger.WithTask(taskID).Info("task skipped", "cause", cause)
}

func (e *Engine) publishPhaseCompleted(phase int) {
	c := e.run.PhaseCounts(phase)
	e.bus.Publish(event.NewPhaseCompletedEvent(e.run.ID(), phase, c.Succeeded, c.Failed, c.Skipped))
	e.logger.Info("phase completed",
		"phase", phase, "succeeded", c.Succeeded, "failed", c.Failed, "skipped", c.Skipped)
}

// save persists the current snapshot. Mid-run persistence is advisory; a
// failed write is logged and the run keeps going, because the terminal save
// is the one crash recovery depends on.
func (e *Engine) save() {
	if err := e.store.Save(e.run.Snapshot()); err != nil {
		e.logger.Error("snapshot save failed", "error", err)
	}
}

func (e *Engine) saveFinal() error {
	if err := e.store.Save(e.run.Snapshot()); err != nil {
		return errors.Wrap(err, "saving final snapshot")
	}
	return nil
}

// artifactRef is the reference recorded on a succeeded task instance.
func artifactRef(runID, taskID string) string {
	return runID + "/" + taskID
}

// cancelReason renders the context's cancel cause as an abort reason.
func cancelReason(ctx context.Context) string {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return "run cancelled"
	}
	return cause.Error()
}
