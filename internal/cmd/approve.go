package cmd

import (
	"fmt"
	"os"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/gate"
	"github.com/gantryhq/gantry/internal/orchestrator"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <run-id> [gate-id]",
	Short: "Approve a pending gate",
	Long: `Approve a checkpoint gate so the run proceeds into the next phase.

When the gate ID is omitted, the gate the run is currently waiting on is
approved. The run may be owned by another process: the decision is then
dropped into the run's control directory and picked up by the owning
orchestrator.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <run-id> [gate-id]",
	Short: "Reject a pending gate",
	Long: `Reject a checkpoint gate. The run aborts: remaining tasks are skipped
and the terminal snapshot records the rejection.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReject,
}

var (
	gateResolvedBy string
	gateComment    string
)

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)

	for _, c := range []*cobra.Command{approveCmd, rejectCmd} {
		c.Flags().StringVar(&gateResolvedBy, "by", defaultResolvedBy(), "who is recorded as resolving the gate")
		c.Flags().StringVar(&gateComment, "comment", "", "comment recorded with the decision")
	}
}

func runApprove(cmd *cobra.Command, args []string) error {
	return submitGateDecision(args, gate.DecisionApproved)
}

func runReject(cmd *cobra.Command, args []string) error {
	return submitGateDecision(args, gate.DecisionRejected)
}

func submitGateDecision(args []string, decision gate.Decision) error {
	cfg := config.Get()
	store := run.NewStore(cfg.Storage.DataDir)

	runID, err := resolveRunID(store, args[0])
	if err != nil {
		return err
	}

	gateID := ""
	if len(args) > 1 {
		gateID = args[1]
	}
	if gateID == "" {
		snap, err := store.Load(runID)
		if err != nil {
			return err
		}
		if snap.AwaitingGate == "" {
			return fmt.Errorf("run %s is not waiting on a gate", shortID(runID))
		}
		gateID = snap.AwaitingGate
	}

	orch, err := orchestrator.New(orchestrator.Options{DataDir: cfg.Storage.DataDir})
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.ResolveGate(runID, gateID, decision, gateResolvedBy, gateComment); err != nil {
		return err
	}

	fmt.Printf("Submitted %s for gate %s (run %s)\n", decision, gateID, shortID(runID))
	return nil
}

// defaultResolvedBy names the operator recorded on gate decisions.
func defaultResolvedBy() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "operator"
}
