package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"refsync/internal/orchestrator"
	"refsync/internal/tui/styles"
)

var statusHeaders = []string{"REPOSITORY", "DESIRED", "HEAD", "STATE"}

func statusRow(s RepoStatus) []string {
	desired := s.Desired.String()
	if s.ResolveErr != nil {
		desired = s.ResolveErr.Error()
	}
	head := "-"
	switch {
	case s.Err != nil:
		head = s.Err.Error()
	case s.Present:
		head = s.Head.String()
		if len(s.Tags) > 0 {
			head += " [" + strings.Join(s.Tags, ", ") + "]"
		}
	}
	return []string{s.Name, desired, head, s.State()}
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "ok":
		return styles.SuccessStyle
	case "dirty", "behind":
		return styles.WarningStyle
	case "missing":
		return styles.PendingStyle
	default:
		return styles.ErrorStyle
	}
}

// RenderText renders statuses as a bordered table.
func RenderText(statuses []RepoStatus) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, statusRow(s))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.BorderColor)).
		Headers(statusHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.HeaderCellStyle
			case col == len(statusHeaders)-1:
				return stateStyle(rows[row][col]).Padding(0, 1)
			default:
				return styles.CellStyle
			}
		})
	return t.Render() + "\n"
}

// Markdown renders statuses as a GitHub-flavored markdown document.
func Markdown(statuses []RepoStatus) string {
	var b strings.Builder
	b.WriteString("# Repository status\n\n")
	b.WriteString("| " + strings.Join(statusHeaders, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(statusHeaders)) + "\n")
	for _, s := range statuses {
		cells := statusRow(s)
		for i, c := range cells {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	var problems []RepoStatus
	for _, s := range statuses {
		if s.State() != "ok" {
			problems = append(problems, s)
		}
	}
	if len(problems) == 0 {
		b.WriteString("\nAll repositories are at their requested reference.\n")
		return b.String()
	}
	b.WriteString("\n## Needs attention\n\n")
	for _, s := range problems {
		fmt.Fprintf(&b, "- **%s** (`%s`): %s\n", s.Name, s.Path, s.State())
	}
	return b.String()
}

// RenderMarkdown renders the markdown report for a terminal using the named
// glamour style ("dark", "light", "notty", ...), wrapped at width.
func RenderMarkdown(statuses []RepoStatus, style string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(Markdown(statuses))
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// DetectStyle picks a glamour style for stdout. GLAMOUR_STYLE wins; otherwise
// the terminal background is queried, giving up after timeout.
func DetectStyle(timeout time.Duration) string {
	defaultStyle := "dark"

	style := os.Getenv("GLAMOUR_STYLE")
	if style != "" && style != "auto" {
		return style
	}

	out := termenv.NewOutput(os.Stdout)
	if out.Profile == termenv.Ascii {
		return "notty"
	}

	ch := make(chan string, 1)
	go func() {
		if out.HasDarkBackground() {
			ch <- "dark"
			return
		}
		ch <- "light"
	}()

	select {
	case s := <-ch:
		return s
	case <-time.After(timeout):
		return defaultStyle
	}
}

// RenderResults summarizes a checkout run, one line per repository followed
// by the totals.
func RenderResults(results []orchestrator.Result) string {
	var b strings.Builder
	width := 0
	for _, r := range results {
		width = max(width, lipgloss.Width(r.Name))
	}

	for _, r := range results {
		var mark string
		switch r.Status {
		case orchestrator.StatusSuccess:
			mark = styles.SuccessStyle.Render("✓")
		case orchestrator.StatusFailed:
			mark = styles.ErrorStyle.Render("✗")
		case orchestrator.StatusSkipped:
			mark = styles.WarningStyle.Render("-")
		default:
			mark = styles.PendingStyle.Render("·")
		}
		name := r.Name + strings.Repeat(" ", width-lipgloss.Width(r.Name))
		fmt.Fprintf(&b, "%s %s  %s\n", mark, name, r.GetMessage())
	}

	sum := orchestrator.Summarize(results)
	line := fmt.Sprintf("%d succeeded, %d failed, %d skipped", sum.Success, sum.Failed, sum.Skipped)
	if sum.Pending > 0 {
		line += fmt.Sprintf(", %d not started", sum.Pending)
	}
	b.WriteString(styles.SubtitleStyle.Render(line) + "\n")
	return b.String()
}
