package cmd

import (
	"fmt"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/gantryhq/gantry/internal/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [run-id]",
	Short: "Watch a run live",
	Long: `Open a live view of a run: per-task statuses refresh as the run's
snapshot changes on disk. Works for runs owned by any process.

Press q to leave the view; the run itself keeps executing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	store := run.NewStore(config.Get().Storage.DataDir)

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	runID, err := resolveRunID(store, arg)
	if err != nil {
		return err
	}

	if err := tui.Watch(store, runID); err != nil {
		return err
	}

	// The alt-screen view is gone once Watch returns; print the snapshot so
	// the final state stays in the terminal.
	snap, err := store.Load(runID)
	if err != nil {
		return err
	}
	fmt.Print(renderSnapshot(snap))
	return nil
}
