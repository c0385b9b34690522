package run

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/graph"
)

// NewID returns a fresh run identifier.
func NewID() string {
	return uuid.NewString()
}

// Run binds a validated task graph to runtime state. All methods are safe
// for concurrent use via an internal mutex; during execution the engine is
// the only writer and other goroutines only read copies.
type Run struct {
	id   string
	plan string
	g    *graph.Graph

	mu           sync.Mutex
	status       Status
	currentPhase int
	awaitingGate string
	reason       string
	instances    map[string]*TaskInstance
	gates        []GateRecord
	createdAt    time.Time
	startedAt    *time.Time
	finishedAt   *time.Time
}

// New creates a Run for the given graph with every task pending.
func New(id, planName string, g *graph.Graph) *Run {
	now := time.Now()
	instances := make(map[string]*TaskInstance, g.Len())
	for _, spec := range g.Tasks() {
		instances[spec.ID] = &TaskInstance{
			TaskID:    spec.ID,
			Status:    TaskPending,
			CreatedAt: now,
		}
	}

	phase := 0
	if phases := g.Phases(); len(phases) > 0 {
		phase = phases[0]
	}

	return &Run{
		id:           id,
		plan:         planName,
		g:            g,
		status:       StatusPending,
		currentPhase: phase,
		instances:    instances,
		createdAt:    now,
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// PlanName returns the name of the plan this run executes.
func (r *Run) PlanName() string {
	return r.plan
}

// Graph returns the immutable task graph.
func (r *Run) Graph() *graph.Graph {
	return r.g
}

// Status returns the current run status.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CurrentPhase returns the phase the engine is currently executing.
func (r *Run) CurrentPhase() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentPhase
}

// -----------------------------------------------------------------------------
// Run transitions
// -----------------------------------------------------------------------------

// Start transitions the run from pending to running.
func (r *Run) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusPending {
		return fmt.Errorf("%w: cannot start run in status %s", errors.ErrInvalidTransition, r.status)
	}
	now := time.Now()
	r.status = StatusRunning
	r.startedAt = &now
	return nil
}

// SetPhase records the phase the engine is about to execute.
func (r *Run) SetPhase(phase int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentPhase = phase
}

// AwaitGate transitions the run to awaiting-approval while the given gate
// is pending.
func (r *Run) AwaitGate(gateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return fmt.Errorf("%w: cannot await gate in status %s", errors.ErrInvalidTransition, r.status)
	}
	r.status = StatusAwaitingApproval
	r.awaitingGate = gateID
	return nil
}

// Resume transitions the run back to running after a gate approves.
func (r *Run) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusAwaitingApproval {
		return fmt.Errorf("%w: cannot resume run in status %s", errors.ErrInvalidTransition, r.status)
	}
	r.status = StatusRunning
	r.awaitingGate = ""
	return nil
}

// RecordGate appends a resolved gate to the traversal history.
func (r *Run) RecordGate(rec GateRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates = append(r.gates, rec)
}

// Complete transitions the run to its successful terminal status:
// completed when no task failed, completed-degraded otherwise.
func (r *Run) Complete() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return fmt.Errorf("%w: cannot complete run in status %s", errors.ErrInvalidTransition, r.status)
	}
	now := time.Now()
	if r.countsLocked().Failed > 0 {
		r.status = StatusCompletedDegraded
	} else {
		r.status = StatusCompleted
	}
	r.finishedAt = &now
	return nil
}

// Abort transitions the run to aborted with the given reason. Any live
// status can abort; aborting a finished run fails with ErrRunFinished.
func (r *Run) Abort(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.IsTerminal() {
		return fmt.Errorf("%w: run is %s", errors.ErrRunFinished, r.status)
	}
	now := time.Now()
	r.status = StatusAborted
	r.reason = reason
	r.awaitingGate = ""
	r.finishedAt = &now
	return nil
}

// -----------------------------------------------------------------------------
// Task transitions
// -----------------------------------------------------------------------------

// taskLocked returns the instance for the given ID. Callers hold the mutex.
func (r *Run) taskLocked(taskID string) (*TaskInstance, error) {
	inst, ok := r.instances[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrTaskNotFound, taskID)
	}
	return inst, nil
}

// MarkReady transitions a pending task to ready.
func (r *Run) MarkReady(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, err := r.taskLocked(taskID)
	if err != nil {
		return err
	}
	if inst.Status != TaskPending {
		return fmt.Errorf("%w: cannot transition %s from %s to ready", errors.ErrInvalidTransition, taskID, inst.Status)
	}
	now := time.Now()
	inst.Status = TaskReady
	inst.ReadyAt = &now
	return nil
}

// MarkStarted records the beginning of an execution attempt and returns the
// attempt number. The first call transitions ready to running; later calls
// record retries without changing the status.
func (r *Run) MarkStarted(taskID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, err := r.taskLocked(taskID)
	if err != nil {
		return 0, err
	}
	switch inst.Status {
	case TaskReady:
		now := time.Now()
		inst.Status = TaskRunning
		inst.StartedAt = &now
	case TaskRunning:
		// retry attempt
	default:
		return 0, fmt.Errorf("%w: cannot start task %s in status %s", errors.ErrInvalidTransition, taskID, inst.Status)
	}
	inst.Attempts++
	return inst.Attempts, nil
}

// MarkSucceeded transitions a running task to succeeded and records its
// artifact reference.
func (r *Run) MarkSucceeded(taskID, artifactRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, err := r.taskLocked(taskID)
	if err != nil {
		return err
	}
	if inst.Status != TaskRunning {
		return fmt.Errorf("%w: cannot transition %s from %s to succeeded", errors.ErrInvalidTransition, taskID, inst.Status)
	}
	now := time.Now()
	inst.Status = TaskSucceeded
	inst.ArtifactRef = artifactRef
	inst.FinishedAt = &now
	return nil
}

// MarkFailed transitions a running task to failed with its final error.
func (r *Run) MarkFailed(taskID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, err := r.taskLocked(taskID)
	if err != nil {
		return err
	}
	if inst.Status != TaskRunning {
		return fmt.Errorf("%w: cannot transition %s from %s to failed", errors.ErrInvalidTransition, taskID, inst.Status)
	}
	now := time.Now()
	inst.Status = TaskFailed
	inst.Error = errMsg
	inst.FinishedAt = &now
	return nil
}

// MarkSkipped transitions a non-terminal task to skipped, naming the task
// whose outcome caused the skip.
func (r *Run) MarkSkipped(taskID, cause string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, err := r.taskLocked(taskID)
	if err != nil {
		return err
	}
	if inst.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot transition %s from %s to skipped", errors.ErrInvalidTransition, taskID, inst.Status)
	}
	r.skipLocked(inst, cause)
	return nil
}

// skipLocked marks an instance skipped. Callers hold the mutex and have
// verified the instance is not terminal.
func (r *Run) skipLocked(inst *TaskInstance, cause string) {
	now := time.Now()
	inst.Status = TaskSkipped
	inst.Cause = cause
	inst.FinishedAt = &now
}

// -----------------------------------------------------------------------------
// Ready set and cascading skips
// -----------------------------------------------------------------------------

// ReadyTasks returns the IDs of pending tasks in the given phase whose
// dependency invariant is satisfied: every required dependency succeeded
// and every optional dependency is terminal. IDs are in plan order.
func (r *Run) ReadyTasks(phase int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ready []string
	for _, spec := range r.g.TasksInPhase(phase) {
		inst := r.instances[spec.ID]
		if inst.Status != TaskPending {
			continue
		}
		if r.depsSatisfiedLocked(spec) {
			ready = append(ready, spec.ID)
		}
	}
	return ready
}

// depsSatisfiedLocked reports whether the dependency invariant holds for
// the given spec. Callers hold the mutex.
func (r *Run) depsSatisfiedLocked(spec graph.TaskSpec) bool {
	for depID, kind := range spec.DependsOn {
		dep, ok := r.instances[depID]
		if !ok {
			return false
		}
		switch kind {
		case graph.DepRequired:
			if dep.Status != TaskSucceeded {
				return false
			}
		case graph.DepOptional:
			if !dep.Status.IsTerminal() {
				return false
			}
		}
	}
	return true
}

// CascadeSkip marks every not-yet-terminal task that transitively requires
// the given failed or skipped task as skipped. The recorded cause is the
// originating failed ancestor. Returns the IDs of newly skipped tasks in
// the order they were marked.
//
// The engine calls this immediately on every failure and skip so that
// ready-set computation in later phases always sees settled state.
func (r *Run) CascadeSkip(fromID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var skipped []string
	queue := []string{fromID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		origin, ok := r.instances[current]
		if !ok || (origin.Status != TaskFailed && origin.Status != TaskSkipped) {
			continue
		}
		cause := current
		if origin.Status == TaskSkipped && origin.Cause != "" {
			cause = origin.Cause
		}

		for _, depdt := range r.g.DependentsOf(current) {
			inst := r.instances[depdt]
			if inst == nil || inst.Status.IsTerminal() {
				continue
			}
			if r.g.DependenciesOf(depdt)[current] != graph.DepRequired {
				continue
			}
			r.skipLocked(inst, cause)
			skipped = append(skipped, depdt)
			queue = append(queue, depdt)
		}
	}
	return skipped
}

// SkipRemaining marks every task not yet terminal as skipped with the
// given cause. Used when a run aborts so the terminal snapshot still
// enumerates a final status for every task. Returns the IDs of newly
// skipped tasks in plan order.
func (r *Run) SkipRemaining(cause string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var skipped []string
	for _, id := range r.g.TaskIDs() {
		inst := r.instances[id]
		if inst.Status.IsTerminal() {
			continue
		}
		r.skipLocked(inst, cause)
		skipped = append(skipped, id)
	}
	return skipped
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// Task returns a copy of the instance for the given task ID.
func (r *Run) Task(taskID string) (TaskInstance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[taskID]
	if !ok {
		return TaskInstance{}, false
	}
	return copyInstance(inst), true
}

// PhaseTerminal reports whether every task in the given phase reached a
// terminal status. A checkpoint gate must not be evaluated before this
// holds.
func (r *Run) PhaseTerminal(phase int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, spec := range r.g.TasksInPhase(phase) {
		if !r.instances[spec.ID].Status.IsTerminal() {
			return false
		}
	}
	return true
}

// PhaseCounts returns the per-status task counts for the given phase.
func (r *Run) PhaseCounts(phase int) StatusCounts {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c StatusCounts
	for _, spec := range r.g.TasksInPhase(phase) {
		c.Total++
		tally(&c, r.instances[spec.ID].Status)
	}
	return c
}

// Counts returns the per-status task counts across the whole run.
func (r *Run) Counts() StatusCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countsLocked()
}

// countsLocked tallies all instances. Callers hold the mutex.
func (r *Run) countsLocked() StatusCounts {
	var c StatusCounts
	c.Total = len(r.instances)
	for _, inst := range r.instances {
		tally(&c, inst.Status)
	}
	return c
}

// tally increments the counter matching the given status.
func tally(c *StatusCounts, status TaskStatus) {
	switch status {
	case TaskPending:
		c.Pending++
	case TaskReady:
		c.Ready++
	case TaskRunning:
		c.Running++
	case TaskSucceeded:
		c.Succeeded++
	case TaskFailed:
		c.Failed++
	case TaskSkipped:
		c.Skipped++
	}
}

// Snapshot returns a deep copy of the run state for persistence and status
// queries.
func (r *Run) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make(map[string]TaskInstance, len(r.instances))
	for id, inst := range r.instances {
		tasks[id] = copyInstance(inst)
	}
	gates := make([]GateRecord, len(r.gates))
	copy(gates, r.gates)

	return &Snapshot{
		ID:           r.id,
		Plan:         r.plan,
		Status:       r.status,
		CurrentPhase: r.currentPhase,
		AwaitingGate: r.awaitingGate,
		Reason:       r.reason,
		CreatedAt:    r.createdAt,
		StartedAt:    copyTime(r.startedAt),
		FinishedAt:   copyTime(r.finishedAt),
		Tasks:        tasks,
		Gates:        gates,
		Specs:        r.g.Tasks(),
	}
}

// Result summarizes the run's current state as a terminal result.
func (r *Run) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &Result{
		RunID:  r.id,
		Status: r.status,
		Reason: r.reason,
		Counts: r.countsLocked(),
	}
}

// copyInstance returns a copy with its own timestamp pointers so the
// caller cannot reach back into the run.
func copyInstance(inst *TaskInstance) TaskInstance {
	cp := *inst
	cp.ReadyAt = copyTime(inst.ReadyAt)
	cp.StartedAt = copyTime(inst.StartedAt)
	cp.FinishedAt = copyTime(inst.FinishedAt)
	return cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
