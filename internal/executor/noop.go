package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gantryhq/gantry/internal/artifact"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/graph"
)

// NoopName is the registry name of the noop executor.
const NoopName = "noop"

// Noop succeeds without doing any work. It exists for plan dry-runs and for
// exercising gates and phase ordering without real commands.
//
// Args:
//
//	payload  literal artifact payload (default: a JSON summary of the inputs)
//	sleep    duration to wait before succeeding, honoring cancellation
type Noop struct{}

// Execute waits out an optional sleep and returns the task's artifact.
func (Noop) Execute(ctx context.Context, task *graph.TaskSpec, inputs Inputs) (*artifact.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if arg := task.Args["sleep"]; arg != "" {
		d, err := time.ParseDuration(arg)
		if err != nil {
			return nil, errors.NewValidationError("invalid sleep duration").
				WithField("sleep").WithValue(arg).WithCause(err)
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	payload := []byte(task.Args["payload"])
	contentType := task.ContentType
	if len(payload) == 0 {
		missing := make([]string, 0)
		for _, in := range inputs.Missing() {
			missing = append(missing, in.TaskID)
		}
		summary := struct {
			TaskID        string   `json:"task_id"`
			Inputs        int      `json:"inputs"`
			MissingInputs []string `json:"missing_inputs,omitempty"`
		}{TaskID: task.ID, Inputs: len(inputs), MissingInputs: missing}
		payload, _ = json.Marshal(summary)
		if contentType == "" {
			contentType = "application/json"
		}
	} else if contentType == "" {
		contentType = "text/plain"
	}

	return &artifact.Artifact{
		TaskID:      task.ID,
		Phase:       task.Phase,
		ContentType: contentType,
		Payload:     payload,
	}, nil
}
