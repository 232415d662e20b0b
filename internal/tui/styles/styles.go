package styles

import "github.com/charmbracelet/lipgloss"

// Centralized Lip Gloss styles for refsync terminal output.
// All colors are specified using hex codes.

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff5fd2")).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff005f")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff5f")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffaf00")).
			Bold(true)

	// PendingStyle marks repositories that have not started.
	PendingStyle = lipgloss.NewStyle().
			Faint(true).
			Foreground(lipgloss.Color("#a8a8a8"))

	// RefStyle renders branch, tag and commit names.
	RefStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5fd7ff"))

	HelpStyle = lipgloss.NewStyle().
			Faint(true).
			Foreground(lipgloss.Color("#a8a8a8")).
			MarginTop(1)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5fd7ff"))

	HeaderCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff5fd2")).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	// BorderColor is used for table borders.
	BorderColor = lipgloss.Color("#5f5fff")
)
