package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gantryhq/gantry/internal/graph"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/gantryhq/gantry/internal/tui/styles"
)

// View renders the watch screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	if m.snap == nil {
		if m.loadErr != nil {
			return styles.ErrorMsg.Render(fmt.Sprintf("cannot load run %s: %v", m.runID, m.loadErr)) + "\n"
		}
		return fmt.Sprintf("\n %s Loading run %s...\n", m.spinner.View(), m.runID)
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n\n")
	b.WriteString(m.renderTasks())
	if m.snap.AwaitingGate != "" {
		b.WriteString("\n")
		b.WriteString(m.renderGateBanner())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := "Gantry: run " + shortID(m.snap.ID)
	if m.snap.Plan != "" {
		title = fmt.Sprintf("Gantry: %s (run %s)", m.snap.Plan, shortID(m.snap.ID))
	}
	return styles.Header.Width(m.width).Render(title)
}

func (m Model) renderStatusLine() string {
	line := styles.RenderStatus(string(m.snap.Status))
	if m.snap.Status == run.StatusRunning {
		line = m.spinner.View() + " " + line
	}
	line += fmt.Sprintf("   phase %d", m.snap.CurrentPhase)
	if m.snap.StartedAt != nil {
		end := time.Now()
		if m.snap.FinishedAt != nil {
			end = *m.snap.FinishedAt
		}
		line += "   elapsed " + end.Sub(*m.snap.StartedAt).Round(time.Second).String()
	}
	if m.snap.Reason != "" {
		line += "   " + styles.Muted.Render(truncate(m.snap.Reason, 60))
	}
	return line
}

// renderTasks renders the scrollable task list with phase headings.
func (m Model) renderTasks() string {
	rows := m.taskRows()
	if len(rows) == 0 {
		return styles.Muted.Render("No tasks") + "\n"
	}

	start := m.scrollOffset
	end := start + m.visibleRows()
	if end > len(rows) {
		end = len(rows)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("▲ %d more above", start)))
		b.WriteString("\n")
	}
	for _, row := range rows[start:end] {
		if row.heading {
			b.WriteString(styles.Section.Render(fmt.Sprintf("Phase %d", row.phase)))
			b.WriteString("\n")
			continue
		}
		b.WriteString(m.renderTaskRow(row.spec))
	}
	if rest := len(rows) - end; rest > 0 {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("▼ %d more below", rest)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderTaskRow formats one task line. Styled segments stay outside the
// width padding so ANSI escapes do not skew the columns.
func (m Model) renderTaskRow(spec graph.TaskSpec) string {
	inst := m.snap.Tasks[spec.ID]
	style := lipgloss.NewStyle().Foreground(styles.StatusColor(string(inst.Status)))

	icon := style.Render(styles.StatusIcon(string(inst.Status)))
	if inst.Status == run.TaskRunning {
		icon = m.spinner.View()
	}

	line := fmt.Sprintf("  %s %-24s %s",
		icon,
		truncate(spec.ID, 24),
		style.Render(fmt.Sprintf("%-10s", inst.Status)))
	if inst.Attempts > 1 {
		line += fmt.Sprintf("  attempts=%d", inst.Attempts)
	}
	switch {
	case inst.StartedAt != nil && inst.FinishedAt != nil:
		line += "  " + inst.FinishedAt.Sub(*inst.StartedAt).Round(time.Millisecond).String()
	case inst.StartedAt != nil:
		line += "  " + time.Since(*inst.StartedAt).Round(time.Second).String()
	}
	if inst.Error != "" {
		line += "  " + styles.Error.Render(truncate(inst.Error, 48))
	}
	if inst.Cause != "" {
		line += "  " + styles.Muted.Render("cause: "+truncate(inst.Cause, 32))
	}
	return line + "\n"
}

func (m Model) renderGateBanner() string {
	text := fmt.Sprintf(" Gate %s awaiting approval: gantry approve %s ",
		m.snap.AwaitingGate, shortID(m.snap.ID))
	return styles.GateBanner.Render(text)
}

func (m Model) renderFooter() string {
	c := m.snap.Counts()
	counts := fmt.Sprintf("%d tasks: %d succeeded, %d failed, %d skipped",
		c.Total, c.Succeeded, c.Failed, c.Skipped)
	if inFlight := c.Pending + c.Ready + c.Running; inFlight > 0 {
		counts += fmt.Sprintf(", %d in flight", inFlight)
	}

	help := styles.HelpKey.Render("[q]") + styles.Muted.Render(" quit   ") +
		styles.HelpKey.Render("[j/k]") + styles.Muted.Render(" scroll   ") +
		styles.HelpKey.Render("[g/G]") + styles.Muted.Render(" top/bottom")
	return counts + "\n" + help
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
	if n <= 1 {
		return "…"
	}
	return s[:n-1] + "…"
}
