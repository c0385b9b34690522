package run

import (
	"time"

	"github.com/gantryhq/gantry/internal/graph"
)

// TaskStatus represents the runtime state of a task instance.
type TaskStatus string

const (
	// TaskPending indicates the task is waiting for its dependencies.
	TaskPending TaskStatus = "pending"

	// TaskReady indicates the dependency invariant is satisfied and the
	// task is eligible for dispatch, possibly waiting for a worker slot.
	TaskReady TaskStatus = "ready"

	// TaskRunning indicates an executor is actively working on the task.
	TaskRunning TaskStatus = "running"

	// TaskSucceeded indicates the task finished and its artifact was
	// committed.
	TaskSucceeded TaskStatus = "succeeded"

	// TaskFailed indicates the task exhausted its attempts without
	// succeeding.
	TaskFailed TaskStatus = "failed"

	// TaskSkipped indicates the task never produced a result because a
	// required dependency did not succeed or the run was aborted.
	TaskSkipped TaskStatus = "skipped"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskSkipped
}

// Status represents the overall state of a run.
type Status string

const (
	// StatusPending indicates the run was created but has not started.
	StatusPending Status = "pending"

	// StatusRunning indicates the engine is executing phases.
	StatusRunning Status = "running"

	// StatusAwaitingApproval indicates the run is paused at a checkpoint
	// gate.
	StatusAwaitingApproval Status = "awaiting-approval"

	// StatusCompleted indicates every task succeeded or was skipped with
	// no failures.
	StatusCompleted Status = "completed"

	// StatusCompletedDegraded indicates the run finished with non-fatal
	// task failures.
	StatusCompletedDegraded Status = "completed-degraded"

	// StatusAborted indicates a fatal task failed, a gate was rejected or
	// timed out, or the run was aborted externally.
	StatusAborted Status = "aborted"
)

// String returns the string representation of the run status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompletedDegraded || s == StatusAborted
}

// ExitCode maps a run status to the process exit code: 0 for completed,
// 2 for completed-degraded, 3 for aborted. Non-terminal statuses map to 1,
// the generic failure code.
func (s Status) ExitCode() int {
	switch s {
	case StatusCompleted:
		return 0
	case StatusCompletedDegraded:
		return 2
	case StatusAborted:
		return 3
	default:
		return 1
	}
}

// TaskInstance is the runtime record for a single task within a run.
type TaskInstance struct {
	// TaskID is the task identifier from the plan.
	TaskID string `json:"task_id"`

	// Status is the current execution state.
	Status TaskStatus `json:"status"`

	// Attempts counts execution attempts, including retries.
	Attempts int `json:"attempts,omitempty"`

	// Error holds the final error message of a failed task.
	Error string `json:"error,omitempty"`

	// Cause names the task whose outcome caused a skip. For transitive
	// cascades it is the originating failed ancestor, not the intermediate
	// skipped task.
	Cause string `json:"cause,omitempty"`

	// ArtifactRef is the store key of the committed artifact.
	ArtifactRef string `json:"artifact_ref,omitempty"`

	// CreatedAt is when the instance entered pending.
	CreatedAt time.Time `json:"created_at"`

	// ReadyAt is when the instance entered ready.
	ReadyAt *time.Time `json:"ready_at,omitempty"`

	// StartedAt is when the first execution attempt began.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt is when the instance reached a terminal status.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// GateRecord describes a traversed checkpoint gate.
type GateRecord struct {
	GateID     string    `json:"gate_id"`
	AfterPhase int       `json:"after_phase"`
	Decision   string    `json:"decision"`
	ResolvedBy string    `json:"resolved_by,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// StatusCounts is a snapshot of per-status task counts.
type StatusCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Ready     int `json:"ready"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Snapshot is a point-in-time copy of run state. It is the document
// persisted as run.json and the payload returned by status queries.
type Snapshot struct {
	ID           string                  `json:"id"`
	Plan         string                  `json:"plan"`
	Status       Status                  `json:"status"`
	CurrentPhase int                     `json:"current_phase"`
	AwaitingGate string                  `json:"awaiting_gate,omitempty"`
	Reason       string                  `json:"reason,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	FinishedAt   *time.Time              `json:"finished_at,omitempty"`
	Tasks        map[string]TaskInstance `json:"tasks"`
	Gates        []GateRecord            `json:"gates,omitempty"`
	Specs        []graph.TaskSpec        `json:"specs"`
}

// Counts returns the per-status task counts for this snapshot.
func (s *Snapshot) Counts() StatusCounts {
	var c StatusCounts
	c.Total = len(s.Tasks)
	for _, inst := range s.Tasks {
		switch inst.Status {
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
	return c
}

// Result summarizes a finished run.
type Result struct {
	RunID  string       `json:"run_id"`
	Status Status       `json:"status"`
	Reason string       `json:"reason,omitempty"`
	Counts StatusCounts `json:"counts"`
}

// ExitCode returns the process exit code for this result.
func (r *Result) ExitCode() int {
	return r.Status.ExitCode()
}

// Info is summary information about a persisted run, used by listings.
type Info struct {
	ID        string    `json:"id"`
	Plan      string    `json:"plan"`
	Status    Status    `json:"status"`
	TaskCount int       `json:"task_count"`
	CreatedAt time.Time `json:"created_at"`
	RunDir    string    `json:"run_dir"`
	Live      bool      `json:"live"`
	OwnerPID  int       `json:"owner_pid,omitempty"`
}
