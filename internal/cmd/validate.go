package cmd

import (
	"fmt"
	"strings"

	"github.com/gantryhq/gantry/internal/graph"
	"github.com/gantryhq/gantry/internal/plan"
	"github.com/gantryhq/gantry/internal/tui/styles"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Validate a plan file without starting a run",
	Long: `Parse a plan file and run full structural and graph validation: duplicate
or dangling dependencies, cycles, phase-order violations, gate problems.
Warnings are reported but do not fail validation.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	specs := p.TaskSpecs()
	result := graph.Validate(specs)
	for _, m := range result.Messages {
		printFinding(m)
	}

	if result.HasErrors() {
		fmt.Printf("\nplan %q: %d error(s), %d warning(s)\n", p.Name, result.ErrorCount, result.WarningCount)
		return result.AsError()
	}

	g, err := graph.Build(specs)
	if err != nil {
		return err
	}

	fmt.Printf("Plan %q is valid: %d tasks in %d phase(s)", p.Name, g.Len(), g.PhaseCount())
	if len(p.Gates) > 0 {
		fmt.Printf(", %d gate(s)", len(p.Gates))
	}
	fmt.Println()

	for _, phase := range g.Phases() {
		tasks := g.TasksInPhase(phase)
		ids := make([]string, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		line := fmt.Sprintf("  phase %d: %s", phase, strings.Join(ids, ", "))
		if gateEntry, ok := p.GateForPhase(phase); ok {
			line += fmt.Sprintf("  [gate %s]", gateEntry.ID)
		}
		fmt.Println(line)
	}

	return nil
}

func printFinding(m graph.ValidationMessage) {
	label := styles.Muted.Render("warning")
	if m.IsError() {
		label = styles.Error.Render("error")
	}
	fmt.Printf("%s: %s\n", label, m.Message)
	if m.Suggestion != "" {
		fmt.Printf("  %s\n", styles.Muted.Render(m.Suggestion))
	}
}
