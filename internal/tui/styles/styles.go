// Package styles centralizes the color palette and lipgloss styles shared
// by the watch view and the CLI's rendered output.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on dark terminal surfaces
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	SuccessColor = lipgloss.Color("#10B981") // Green
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	ErrorColor   = lipgloss.Color("#F87171") // Red (red-400)
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray
	BlueColor    = lipgloss.Color("#60A5FA") // Blue
	OrangeColor  = lipgloss.Color("#FB923C") // Orange
	TextColor    = lipgloss.Color("#F9FAFB") // Light text
	BorderColor  = lipgloss.Color("#6B7280") // Gray (gray-500)

	// Convenience styles for colors
	Primary = lipgloss.NewStyle().Foreground(PrimaryColor)
	Success = lipgloss.NewStyle().Foreground(SuccessColor)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Error   = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Section = lipgloss.NewStyle().
		Bold(true).
		Foreground(BlueColor)

	// Header bar of the watch view
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor)

	// Help bar keys
	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SuccessColor)

	// Gate banner shown while a run waits at a checkpoint
	GateBanner = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(WarningColor).
			Bold(true).
			Padding(0, 1)

	// Error message
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)
)

// StatusColor returns the color for a task, run, or gate status.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return MutedColor
	case "ready":
		return BlueColor
	case "running", "approved":
		return SuccessColor
	case "succeeded", "completed":
		return PrimaryColor
	case "failed", "aborted", "rejected", "timed-out":
		return ErrorColor
	case "skipped":
		return OrangeColor
	case "awaiting-approval", "completed-degraded":
		return WarningColor
	default:
		return MutedColor
	}
}

// StatusIcon returns the glyph shown next to a task status.
func StatusIcon(status string) string {
	switch status {
	case "pending":
		return "○"
	case "ready":
		return "◌"
	case "running":
		return "●"
	case "succeeded":
		return "✓"
	case "failed":
		return "✗"
	case "skipped":
		return "⊘"
	default:
		return "●"
	}
}

// RenderStatus renders a status word bold in its status color.
func RenderStatus(status string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(StatusColor(status)).Render(status)
}
