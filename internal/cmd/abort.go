package cmd

import (
	"fmt"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/orchestrator"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/spf13/cobra"
)

var abortCmd = &cobra.Command{
	Use:   "abort <run-id>",
	Short: "Abort a run",
	Long: `Abort a run. A run owned by a live process stops after in-flight tasks
are cancelled; a run whose process died has its snapshot finalized
directly. Remaining tasks are marked skipped either way.`,
	Args: cobra.ExactArgs(1),
	RunE: runAbort,
}

var abortReason string

func init() {
	rootCmd.AddCommand(abortCmd)

	abortCmd.Flags().StringVar(&abortReason, "reason", "", `reason recorded on the run (default "aborted by operator")`)
}

func runAbort(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	store := run.NewStore(cfg.Storage.DataDir)

	runID, err := resolveRunID(store, args[0])
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Options{DataDir: cfg.Storage.DataDir})
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Abort(runID, abortReason); err != nil {
		return err
	}

	fmt.Printf("Abort requested for run %s\n", shortID(runID))
	return nil
}
