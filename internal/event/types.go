// Package event defines event types for decoupling components in Gantry.
// These events enable communication between the engine, orchestrator, CLI,
// and TUI without requiring direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.started", "gate.resolved")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted when a run begins executing its first phase.
type RunStartedEvent struct {
	baseEvent
	RunID      string // Unique identifier for the run
	Plan       string // Name of the plan being executed
	TaskCount  int    // Total number of tasks in the graph
	PhaseCount int    // Number of phases in the graph
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, plan string, taskCount, phaseCount int) RunStartedEvent {
	return RunStartedEvent{
		baseEvent:  newBaseEvent("run.started"),
		RunID:      runID,
		Plan:       plan,
		TaskCount:  taskCount,
		PhaseCount: phaseCount,
	}
}

// RunCompletedEvent is emitted when a run reaches a terminal status.
type RunCompletedEvent struct {
	baseEvent
	RunID     string // Unique identifier for the run
	Status    string // Terminal run status (completed, completed-degraded, aborted)
	Succeeded int    // Number of tasks that succeeded
	Failed    int    // Number of tasks that failed
	Skipped   int    // Number of tasks that were skipped
	Reason    string // Additional context (fatal task or abort source, if any)
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID, status string, succeeded, failed, skipped int, reason string) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent("run.completed"),
		RunID:     runID,
		Status:    status,
		Succeeded: succeeded,
		Failed:    failed,
		Skipped:   skipped,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Task Lifecycle Events
// -----------------------------------------------------------------------------

// TaskStartedEvent is emitted when a worker begins executing a task.
type TaskStartedEvent struct {
	baseEvent
	RunID    string // Run the task belongs to
	TaskID   string // Task identifier from the plan
	Phase    int    // Phase the task belongs to
	Executor string // Name of the executor handling the task
	Attempt  int    // Attempt number, starting at 1
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(runID, taskID string, phase int, executor string, attempt int) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent: newBaseEvent("task.started"),
		RunID:     runID,
		TaskID:    taskID,
		Phase:     phase,
		Executor:  executor,
		Attempt:   attempt,
	}
}

// TaskSucceededEvent is emitted when a task completes successfully and its
// artifact has been committed.
type TaskSucceededEvent struct {
	baseEvent
	RunID    string        // Run the task belongs to
	TaskID   string        // Task identifier from the plan
	Phase    int           // Phase the task belongs to
	Duration time.Duration // Wall-clock execution time
}

// NewTaskSucceededEvent creates a TaskSucceededEvent.
func NewTaskSucceededEvent(runID, taskID string, phase int, duration time.Duration) TaskSucceededEvent {
	return TaskSucceededEvent{
		baseEvent: newBaseEvent("task.succeeded"),
		RunID:     runID,
		TaskID:    taskID,
		Phase:     phase,
		Duration:  duration,
	}
}

// TaskFailedEvent is emitted when a task exhausts its attempts without
// succeeding.
type TaskFailedEvent struct {
	baseEvent
	RunID    string // Run the task belongs to
	TaskID   string // Task identifier from the plan
	Phase    int    // Phase the task belongs to
	Fatal    bool   // Whether the failure aborts the run
	Reason   string // Error message from the final attempt
	Attempts int    // Number of attempts made
}

// NewTaskFailedEvent creates a TaskFailedEvent.
func NewTaskFailedEvent(runID, taskID string, phase int, fatal bool, reason string, attempts int) TaskFailedEvent {
	return TaskFailedEvent{
		baseEvent: newBaseEvent("task.failed"),
		RunID:     runID,
		TaskID:    taskID,
		Phase:     phase,
		Fatal:     fatal,
		Reason:    reason,
		Attempts:  attempts,
	}
}

// TaskSkippedEvent is emitted when a task is skipped because a required
// dependency did not succeed or the run was aborted.
type TaskSkippedEvent struct {
	baseEvent
	RunID  string // Run the task belongs to
	TaskID string // Task identifier from the plan
	Phase  int    // Phase the task belongs to
	Cause  string // Task ID whose outcome caused the skip
}

// NewTaskSkippedEvent creates a TaskSkippedEvent.
func NewTaskSkippedEvent(runID, taskID string, phase int, cause string) TaskSkippedEvent {
	return TaskSkippedEvent{
		baseEvent: newBaseEvent("task.skipped"),
		RunID:     runID,
		TaskID:    taskID,
		Phase:     phase,
		Cause:     cause,
	}
}

// -----------------------------------------------------------------------------
// Phase Events
// -----------------------------------------------------------------------------

// PhaseCompletedEvent is emitted when every task in a phase has reached a
// terminal status.
type PhaseCompletedEvent struct {
	baseEvent
	RunID     string // Run the phase belongs to
	Phase     int    // Phase index
	Succeeded int    // Number of tasks that succeeded in the phase
	Failed    int    // Number of tasks that failed in the phase
	Skipped   int    // Number of tasks that were skipped in the phase
}

// NewPhaseCompletedEvent creates a PhaseCompletedEvent.
func NewPhaseCompletedEvent(runID string, phase, succeeded, failed, skipped int) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		baseEvent: newBaseEvent("phase.completed"),
		RunID:     runID,
		Phase:     phase,
		Succeeded: succeeded,
		Failed:    failed,
		Skipped:   skipped,
	}
}

// -----------------------------------------------------------------------------
// Gate Events
// -----------------------------------------------------------------------------

// GateDecision represents the outcome of a checkpoint gate.
// Mirrors gate.Decision for decoupling.
type GateDecision string

const (
	DecisionApproved GateDecision = "approved"
	DecisionRejected GateDecision = "rejected"
	DecisionTimedOut GateDecision = "timed-out"
)

// GateEnteredEvent is emitted when a run pauses at a checkpoint gate.
type GateEnteredEvent struct {
	baseEvent
	RunID       string // Run that is paused
	GateID      string // Gate identifier
	Phase       int    // Phase the gate follows
	AutoApprove bool   // Whether the gate resolves itself without a decision
}

// NewGateEnteredEvent creates a GateEnteredEvent.
func NewGateEnteredEvent(runID, gateID string, phase int, autoApprove bool) GateEnteredEvent {
	return GateEnteredEvent{
		baseEvent:   newBaseEvent("gate.entered"),
		RunID:       runID,
		GateID:      gateID,
		Phase:       phase,
		AutoApprove: autoApprove,
	}
}

// GateResolvedEvent is emitted when a pending gate receives a decision.
type GateResolvedEvent struct {
	baseEvent
	RunID      string       // Run that was paused
	GateID     string       // Gate identifier
	Decision   GateDecision // Outcome of the gate
	ResolvedBy string       // Who or what resolved the gate (user, auto, timeout)
	Comment    string       // Optional comment supplied with the decision
}

// NewGateResolvedEvent creates a GateResolvedEvent.
func NewGateResolvedEvent(runID, gateID string, decision GateDecision, resolvedBy, comment string) GateResolvedEvent {
	return GateResolvedEvent{
		baseEvent:  newBaseEvent("gate.resolved"),
		RunID:      runID,
		GateID:     gateID,
		Decision:   decision,
		ResolvedBy: resolvedBy,
		Comment:    comment,
	}
}

// -----------------------------------------------------------------------------
// Artifact Events
// -----------------------------------------------------------------------------

// ArtifactStoredEvent is emitted when a task's artifact is committed to the
// store and becomes visible to dependents.
type ArtifactStoredEvent struct {
	baseEvent
	RunID       string // Run the artifact belongs to
	TaskID      string // Task that produced the artifact
	Phase       int    // Phase the task belongs to
	ContentType string // Declared content type of the artifact
	SizeBytes   int    // Size of the artifact payload
}

// NewArtifactStoredEvent creates an ArtifactStoredEvent.
func NewArtifactStoredEvent(runID, taskID string, phase int, contentType string, sizeBytes int) ArtifactStoredEvent {
	return ArtifactStoredEvent{
		baseEvent:   newBaseEvent("artifact.stored"),
		RunID:       runID,
		TaskID:      taskID,
		Phase:       phase,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
	}
}

// Ensure all event types satisfy the Event interface at compile time.
var (
	_ Event = RunStartedEvent{}
	_ Event = RunCompletedEvent{}
	_ Event = TaskStartedEvent{}
	_ Event = TaskSucceededEvent{}
	_ Event = TaskFailedEvent{}
	_ Event = TaskSkippedEvent{}
	_ Event = PhaseCompletedEvent{}
	_ Event = GateEnteredEvent{}
	_ Event = GateResolvedEvent{}
	_ Event = ArtifactStoredEvent{}
)
