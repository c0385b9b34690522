package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/orchestrator"
	"github.com/gantryhq/gantry/internal/plan"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/gantryhq/gantry/internal/tui"
	"github.com/gantryhq/gantry/internal/tui/styles"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <plan-file>",
	Short: "Start a run from a plan file",
	Long: `Start a run from a YAML or JSON plan file and wait for it to finish.

The process exit code reflects the terminal run status: 0 for completed,
2 for completed-degraded, 3 for aborted. Interrupting with Ctrl+C aborts
the run; tasks that already finished keep their results.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var (
	startConcurrency int
	startBackend     string
	startLogLevel    string
	startWatch       bool
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().IntVar(&startConcurrency, "concurrency", 0, "max parallel tasks (default from config)")
	startCmd.Flags().StringVar(&startBackend, "backend", "", "artifact backend: fs or badger (default from config)")
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "run log level: debug, info, warn, error (default from config)")
	startCmd.Flags().BoolVarP(&startWatch, "watch", "w", false, "show the live watch view while the run executes")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	// The config-level task timeout applies only when the plan declares no
	// default of its own; Start re-normalizes and propagates it per task.
	if p.Defaults.Timeout == 0 && cfg.Tasks.DefaultTimeout() > 0 {
		p.Defaults.Timeout = plan.Duration(cfg.Tasks.DefaultTimeout())
	}

	concurrency := cfg.Engine.Concurrency
	if startConcurrency > 0 {
		concurrency = startConcurrency
	}
	backend := cfg.Storage.ArtifactBackend
	if startBackend != "" {
		backend = startBackend
	}
	logLevel := cfg.Logging.Level
	if startLogLevel != "" {
		logLevel = startLogLevel
	}

	orch, err := orchestrator.New(orchestrator.Options{
		DataDir:     cfg.Storage.DataDir,
		Concurrency: concurrency,
		Backend:     backend,
		LogLevel:    logLevel,
		Rotation:    cfg.Logging.Rotation(),
		GateTimeout: cfg.Gates.DefaultTimeout(),
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	// Ctrl+C aborts the run instead of killing the process outright, so the
	// terminal snapshot still gets written.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		cancel(fmt.Errorf("received %s", sig))
	}()

	runID, err := orch.Start(ctx, p)
	if err != nil {
		return err
	}

	fmt.Printf("Started run %s (plan %q, %d tasks)\n", runID, p.Name, len(p.Tasks))
	fmt.Printf("Run directory: %s\n", orch.Store().RunDir(runID))

	if startWatch {
		// The watch view exits when the run reaches a terminal status or
		// the user quits; the run keeps executing either way.
		if err := tui.Watch(orch.Store(), runID); err != nil {
			fmt.Fprintf(os.Stderr, "watch view error: %v\n", err)
		}
	}

	result, err := orch.Wait(runID)
	if err != nil {
		return err
	}

	printResult(result)
	exitCode = result.ExitCode()
	return nil
}

func printResult(res *run.Result) {
	fmt.Println()
	fmt.Printf("Run %s finished: %s\n", res.RunID, styles.RenderStatus(string(res.Status)))
	if res.Reason != "" {
		fmt.Printf("Reason: %s\n", res.Reason)
	}
	c := res.Counts
	fmt.Printf("Tasks: %d total, %d succeeded, %d failed, %d skipped\n",
		c.Total, c.Succeeded, c.Failed, c.Skipped)
}
