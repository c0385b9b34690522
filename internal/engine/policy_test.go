package engine

import (
	"testing"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/graph"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		fatal bool
		err   error
		want  Outcome
	}{
		{name: "nil error succeeds", fatal: false, err: nil, want: OutcomeSucceeded},
		{name: "nil error succeeds on fatal task", fatal: true, err: nil, want: OutcomeSucceeded},
		{name: "error on nonfatal task", fatal: false, err: errors.New("boom"), want: OutcomeFailedNonfatal},
		{name: "error on fatal task", fatal: true, err: errors.New("boom"), want: OutcomeFailedFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &graph.TaskSpec{ID: "task", Fatal: tt.fatal}
			if got := Classify(spec, tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldAbort(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{OutcomeSucceeded, false},
		{OutcomeFailedNonfatal, false},
		{OutcomeFailedFatal, true},
	}

	for _, tt := range tests {
		if got := ShouldAbort(tt.outcome); got != tt.want {
			t.Errorf("ShouldAbort(%v) = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeSucceeded, "succeeded"},
		{OutcomeFailedNonfatal, "failed"},
		{OutcomeFailedFatal, "failed-fatal"},
		{Outcome(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(tt.outcome), got, tt.want)
		}
	}
}
