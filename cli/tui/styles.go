// Package tui provides the Bubble Tea dashboard for live benchmark sweeps.
//
// The dashboard is opt-in only (--tui flag) and read-only: it observes the
// same result events the CSV and adapters receive, never extra data.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for dashboard components.
var (
	// TitleStyle for the dashboard header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// ScenarioStyle for scenario labels.
	ScenarioStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for all-success result lines.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// FailStyle for result lines with failures.
	FailStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HelpStyle for the key hint footer.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// BoxStyle for the results container.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)
)
