package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/graph"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/gantryhq/gantry/internal/tui/styles"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show the status of a run",
	Long: `Display a snapshot of a run: overall status, current phase, per-task
states, and traversed gates. With no argument the most recent run is shown.

Run IDs may be abbreviated to any unique prefix. With --follow the command
prints a summary line on every state change until the run finishes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var (
	statusFollow bool
	statusJSON   bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "keep printing updates until the run finishes")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw snapshot as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	store := run.NewStore(config.Get().Storage.DataDir)

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	runID, err := resolveRunID(store, arg)
	if err != nil {
		return err
	}

	snap, err := store.Load(runID)
	if err != nil {
		return err
	}

	if statusJSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Print(renderSnapshot(snap))

	if !statusFollow || snap.Status.IsTerminal() {
		return nil
	}
	fmt.Println()
	return followStatus(store, runID)
}

// followStatus tails run.json, printing a summary line whenever the run
// state changes. The run directory is watched rather than the file itself
// because atomic snapshot writes replace the file on every save.
func followStatus(store *run.Store, runID string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(store.RunDir(runID)); err != nil {
		return fmt.Errorf("watching run directory: %w", err)
	}

	// The ticker catches updates whose notification was lost, for example
	// when the snapshot was replaced while a previous reload was running.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := ""
	emit := func() bool {
		snap, err := store.Load(runID)
		if err != nil {
			// Snapshot mid-replace; the next event or tick retries.
			return false
		}
		body := summaryLine(snap)
		if body != last {
			fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), body)
			last = body
		}
		return snap.Status.IsTerminal()
	}

	if emit() {
		return nil
	}
	for {
		select {
		case ev := <-watcher.Events:
			if filepath.Base(ev.Name) != run.SnapshotFileName {
				continue
			}
			if emit() {
				return nil
			}
		case <-watcher.Errors:
		case <-ticker.C:
			if emit() {
				return nil
			}
		}
	}
}

// summaryLine condenses a snapshot into one line for follow mode.
func summaryLine(snap *run.Snapshot) string {
	c := snap.Counts()
	line := fmt.Sprintf("%-18s phase=%d  %d/%d succeeded",
		snap.Status, snap.CurrentPhase, c.Succeeded, c.Total)
	if c.Running > 0 {
		line += fmt.Sprintf("  %d running", c.Running)
	}
	if c.Failed > 0 {
		line += fmt.Sprintf("  %d failed", c.Failed)
	}
	if c.Skipped > 0 {
		line += fmt.Sprintf("  %d skipped", c.Skipped)
	}
	if snap.AwaitingGate != "" {
		line += "  awaiting gate " + snap.AwaitingGate
	}
	return line
}

// renderSnapshot renders the full status view for one snapshot. Colors come
// from the watch view's palette.
func renderSnapshot(snap *run.Snapshot) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Run " + snap.ID))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Plan:    %s\n", snap.Plan)
	fmt.Fprintf(&b, "Status:  %s\n", styles.RenderStatus(string(snap.Status)))
	fmt.Fprintf(&b, "Phase:   %d\n", snap.CurrentPhase)
	if snap.AwaitingGate != "" {
		fmt.Fprintf(&b, "Waiting: gate %s\n", snap.AwaitingGate)
	}
	if snap.Reason != "" {
		fmt.Fprintf(&b, "Reason:  %s\n", snap.Reason)
	}
	fmt.Fprintf(&b, "Created: %s\n", snap.CreatedAt.Format(time.RFC822))
	if snap.StartedAt != nil && snap.FinishedAt != nil {
		fmt.Fprintf(&b, "Elapsed: %s\n", snap.FinishedAt.Sub(*snap.StartedAt).Round(time.Millisecond))
	}

	specs := append([]graph.TaskSpec(nil), snap.Specs...)
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Phase != specs[j].Phase {
			return specs[i].Phase < specs[j].Phase
		}
		return specs[i].ID < specs[j].ID
	})

	phase := -1
	for _, spec := range specs {
		inst, ok := snap.Tasks[spec.ID]
		if !ok {
			continue
		}
		if spec.Phase != phase {
			phase = spec.Phase
			b.WriteString(styles.Section.Render(fmt.Sprintf("\nPhase %d", phase)))
			b.WriteString("\n")
		}
		b.WriteString(renderTaskLine(spec, inst))
	}

	if len(snap.Gates) > 0 {
		b.WriteString(styles.Section.Render("\nGates"))
		b.WriteString("\n")
		for _, g := range snap.Gates {
			resolvedBy := g.ResolvedBy
			if resolvedBy == "" {
				resolvedBy = "-"
			}
			fmt.Fprintf(&b, "  %s after phase %d: %s by %s", g.GateID, g.AfterPhase, styles.RenderStatus(g.Decision), resolvedBy)
			if g.Comment != "" {
				b.WriteString(styles.Muted.Render("  " + g.Comment))
			}
			b.WriteString("\n")
		}
	}

	c := snap.Counts()
	fmt.Fprintf(&b, "\n%d tasks: %d succeeded, %d failed, %d skipped",
		c.Total, c.Succeeded, c.Failed, c.Skipped)
	if pending := c.Pending + c.Ready + c.Running; pending > 0 {
		fmt.Fprintf(&b, ", %d in flight", pending)
	}
	b.WriteString("\n")

	return b.String()
}

// renderTaskLine formats one task row. Styled segments stay outside the
// width padding so ANSI escapes do not skew the columns.
func renderTaskLine(spec graph.TaskSpec, inst run.TaskInstance) string {
	style := lipgloss.NewStyle().Foreground(styles.StatusColor(string(inst.Status)))
	line := fmt.Sprintf("  %s %-24s %s",
		style.Render(styles.StatusIcon(string(inst.Status))),
		spec.ID,
		style.Render(fmt.Sprintf("%-10s", inst.Status)))
	if inst.Attempts > 1 {
		line += fmt.Sprintf("  attempts=%d", inst.Attempts)
	}
	if inst.StartedAt != nil && inst.FinishedAt != nil {
		line += "  " + inst.FinishedAt.Sub(*inst.StartedAt).Round(time.Millisecond).String()
	}
	if inst.Error != "" {
		line += "  " + styles.Error.Render(inst.Error)
	}
	if inst.Cause != "" {
		line += "  " + styles.Muted.Render("cause: "+inst.Cause)
	}
	return line + "\n"
}
