package engine

import "github.com/gantryhq/gantry/internal/graph"

// Outcome classifies a finished task attempt sequence.
type Outcome int

const (
	// OutcomeSucceeded means the task produced its artifact.
	OutcomeSucceeded Outcome = iota
	// OutcomeFailedNonfatal means the task failed after exhausting retries;
	// the run degrades but continues.
	OutcomeFailedNonfatal
	// OutcomeFailedFatal means a task marked fatal failed; the run aborts.
	OutcomeFailedFatal
)

// String returns a short label for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailedNonfatal:
		return "failed"
	case OutcomeFailedFatal:
		return "failed-fatal"
	default:
		return "unknown"
	}
}

// Classify maps a task's final error onto an outcome using the spec's Fatal
// flag. Retries have already been spent by the time a result is classified.
func Classify(spec *graph.TaskSpec, err error) Outcome {
	if err == nil {
		return OutcomeSucceeded
	}
	if spec.Fatal {
		return OutcomeFailedFatal
	}
	return OutcomeFailedNonfatal
}

// ShouldAbort reports whether an outcome ends the whole run.
func ShouldAbort(o Outcome) bool {
	return o == OutcomeFailedFatal
}
