package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gantryhq/gantry/internal/artifact"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/graph"
)

// ShellName is the registry name of the shell executor.
const ShellName = "shell"

// stderrTailLimit bounds how much captured stderr is quoted in a failure
// message.
const stderrTailLimit = 512

// Shell runs the task's command line through "sh -c" and captures stdout as
// the artifact payload.
//
// Args:
//
//	command  the command line (required)
//	dir      working directory (default: the orchestrator's cwd)
//
// Dependency inputs are materialized into a temp directory exposed to the
// command as GANTRY_INPUT_DIR: the payload of each available input lands in
// deps/<taskID>, and inputs.json describes every declared edge including
// missing markers. GANTRY_TASK_ID and GANTRY_PHASE identify the task itself.
type Shell struct{}

// NewShell creates the shell executor.
func NewShell() *Shell {
	return &Shell{}
}

// Execute runs the command and waits for it to finish or for ctx to end.
func (s *Shell) Execute(ctx context.Context, task *graph.TaskSpec, inputs Inputs) (*artifact.Artifact, error) {
	command := task.Args["command"]
	if strings.TrimSpace(command) == "" {
		return nil, errors.NewValidationError("shell task has no command").
			WithField("command").WithValue(task.ID)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = task.Args["dir"]
	cmd.Env = append(os.Environ(),
		"GANTRY_TASK_ID="+task.ID,
		fmt.Sprintf("GANTRY_PHASE=%d", task.Phase),
	)

	if len(inputs) > 0 {
		inputDir, cleanup, err := materializeInputs(task.ID, inputs)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		cmd.Env = append(cmd.Env, "GANTRY_INPUT_DIR="+inputDir)
	}

	// The command runs in its own process group so cancellation kills the
	// whole pipeline, not just the leading sh.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		// The SIGKILL from cancellation surfaces as an exit error; the
		// context error is the one callers should see.
		return nil, ctx.Err()
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			msg := fmt.Sprintf("command exited with status %d", exitErr.ExitCode())
			if tail := stderrTail(stderr.Bytes()); tail != "" {
				msg += ": " + tail
			}
			return nil, errors.NewExecutionError(msg, runErr).
				WithTaskID(task.ID).WithPhase(task.Phase)
		}
		return nil, errors.NewExecutionError("command failed to start", runErr).
			WithTaskID(task.ID).WithPhase(task.Phase)
	}

	contentType := task.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	return &artifact.Artifact{
		TaskID:      task.ID,
		Phase:       task.Phase,
		ContentType: contentType,
		Payload:     stdout.Bytes(),
	}, nil
}

// materializeInputs lays the task's inputs out on disk for the command:
//
//	<dir>/inputs.json    metadata for every declared edge
//	<dir>/deps/<taskID>  payload of each available input
//
// The returned cleanup removes the directory.
func materializeInputs(taskID string, inputs Inputs) (string, func(), error) {
	dir, err := os.MkdirTemp("", "gantry-"+taskID+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating input dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	depsDir := filepath.Join(dir, "deps")
	if err := os.Mkdir(depsDir, 0755); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("creating deps dir: %w", err)
	}
	for _, in := range inputs {
		if in.Missing || in.Artifact == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(depsDir, in.TaskID), in.Artifact.Payload, 0644); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("writing input %s: %w", in.TaskID, err)
		}
	}

	manifest, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("marshaling input manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "inputs.json"), manifest, 0644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("writing input manifest: %w", err)
	}
	return dir, cleanup, nil
}

func stderrTail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailLimit {
		s = "..." + s[len(s)-stderrTailLimit:]
	}
	return s
}
