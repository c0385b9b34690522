package executor

import (
	"context"

	"github.com/gantryhq/gantry/internal/artifact"
	"github.com/gantryhq/gantry/internal/graph"
)

// Input is one dependency's contribution to a task execution.
//
// For a satisfied dependency the Artifact field carries the dependency's
// output. For an unmet optional dependency Missing is true, Artifact is nil,
// and Reason names the originating failure. Required dependencies are never
// delivered missing; an unmet required dependency skips the task before it
// is dispatched.
type Input struct {
	// TaskID is the dependency that produced (or failed to produce) this
	// input.
	TaskID string `json:"task_id"`

	// Kind is the dependency edge kind declared in the task spec.
	Kind graph.DepKind `json:"kind"`

	// Missing is true when the dependency reached a terminal status without
	// producing an artifact.
	Missing bool `json:"missing,omitempty"`

	// Reason explains a missing input, for example "dependency lint failed"
	// or "dependency lint skipped (cause: fetch)".
	Reason string `json:"reason,omitempty"`

	// Artifact is the dependency's output. Nil when Missing.
	Artifact *artifact.Artifact `json:"-"`
}

// Inputs is the full set of dependency inputs for one task, one entry per
// declared edge, ordered by dependency task ID.
type Inputs []Input

// Get returns the input contributed by the given dependency.
func (in Inputs) Get(taskID string) (Input, bool) {
	for _, i := range in {
		if i.TaskID == taskID {
			return i, true
		}
	}
	return Input{}, false
}

// Missing returns the subset of inputs that are missing markers.
func (in Inputs) Missing() Inputs {
	var out Inputs
	for _, i := range in {
		if i.Missing {
			out = append(out, i)
		}
	}
	return out
}

// Payload returns the payload bytes of the given dependency's artifact, or
// nil when the input is absent or missing.
func (in Inputs) Payload(taskID string) []byte {
	i, ok := in.Get(taskID)
	if !ok || i.Artifact == nil {
		return nil
	}
	return i.Artifact.Payload
}

// Executor runs a single task attempt.
//
// Implementations must honor ctx cancellation; the engine enforces
// per-attempt timeouts and abort through it. A nil artifact with a nil error
// is treated as success with no output.
type Executor interface {
	Execute(ctx context.Context, task *graph.TaskSpec, inputs Inputs) (*artifact.Artifact, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, task *graph.TaskSpec, inputs Inputs) (*artifact.Artifact, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, task *graph.TaskSpec, inputs Inputs) (*artifact.Artifact, error) {
	return f(ctx, task, inputs)
}
