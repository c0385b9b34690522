package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	Long: `List all runs under the data directory, most recent first, with their
status and whether a live orchestrator process owns them.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store := run.NewStore(config.Get().Storage.DataDir)

	infos, err := store.List()
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		fmt.Println("No runs found.")
		fmt.Println("Run 'gantry start <plan-file>' to start one.")
		return nil
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	fmt.Println(strings.Repeat("─", 78))
	fmt.Printf("%-10s %-22s %-24s %5s  %s\n", "RUN", "PLAN", "STATUS", "TASKS", "CREATED")
	fmt.Println(strings.Repeat("─", 78))
	for _, info := range infos {
		status := string(info.Status)
		if info.Live {
			status += fmt.Sprintf(" (pid %d)", info.OwnerPID)
		}
		fmt.Printf("%-10s %-22s %-24s %5d  %s\n",
			shortID(info.ID), truncate(info.Plan, 22), status, info.TaskCount,
			info.CreatedAt.Format(time.RFC822))
	}
	fmt.Println(strings.Repeat("─", 78))
	fmt.Println("\nRun IDs may be abbreviated: gantry status " + shortID(infos[0].ID))

	return nil
}

// shortID abbreviates a run ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// resolveRunID expands a possibly-abbreviated run ID. An empty argument
// selects the most recently created run.
func resolveRunID(store *run.Store, arg string) (string, error) {
	infos, err := store.List()
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("%w: no runs under %s", errors.ErrRunNotFound, store.RunsDir())
	}

	if arg == "" {
		sort.Slice(infos, func(i, j int) bool {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		})
		return infos[0].ID, nil
	}

	var matches []string
	for _, info := range infos {
		if info.ID == arg {
			return info.ID, nil
		}
		if strings.HasPrefix(info.ID, arg) {
			matches = append(matches, info.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("%w: %s", errors.ErrRunNotFound, arg)
	default:
		return "", fmt.Errorf("run ID %q is ambiguous: %s", arg, strings.Join(matches, ", "))
	}
}
