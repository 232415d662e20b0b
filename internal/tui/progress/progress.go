// Package progress is a live terminal view of a checkout run. The
// orchestrator reports through Observer, which forwards events to the
// bubbletea program as messages.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"refsync/internal/logging"
	"refsync/internal/orchestrator"
	"refsync/internal/tui/styles"
)

// RepoStartedMsg is sent when a repository begins converging.
type RepoStartedMsg struct {
	Name string
}

// RepoFinishedMsg is sent when a repository is done, successfully or not.
type RepoFinishedMsg struct {
	Result orchestrator.Result
}

// DoneMsg ends the view once the whole run has returned.
type DoneMsg struct {
	Results []orchestrator.Result
	Err     error
}

type rowState int

const (
	rowWaiting rowState = iota
	rowRunning
	rowFinished
)

type row struct {
	name    string
	state   rowState
	started time.Time
	result  orchestrator.Result
}

// Model is the bubbletea model of the progress view.
type Model struct {
	rows     []*row
	index    map[string]*row
	spinner  spinner.Model
	width    int
	done     bool
	err      error
	canceled bool
	cancel   context.CancelFunc
	logger   *logging.AppLogger
}

// New returns a model listing names in the given order. cancel, if set, is
// called when the user presses ctrl+c; the view keeps running until DoneMsg
// arrives so in-flight repositories can report.
func New(names []string, cancel context.CancelFunc, logger *logging.AppLogger) Model {
	if logger == nil {
		logger = logging.GetDefault()
	}
	s := spinner.New()
	s.Style = styles.SpinnerStyle
	s.Spinner = spinner.Dot

	m := Model{
		index:   make(map[string]*row, len(names)),
		spinner: s,
		width:   80,
		cancel:  cancel,
		logger:  logger,
	}
	for _, name := range names {
		r := &row{name: name}
		m.rows = append(m.rows, r)
		m.index[name] = r
	}
	return m
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.logger.LogMessage(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.canceled {
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RepoStartedMsg:
		if r, ok := m.index[msg.Name]; ok {
			r.state = rowRunning
			r.started = time.Now()
		}
		return m, nil

	case RepoFinishedMsg:
		if r, ok := m.index[msg.Result.Name]; ok {
			r.state = rowFinished
			r.result = msg.Result
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		for _, res := range msg.Results {
			if r, ok := m.index[res.Name]; ok && r.state != rowFinished {
				r.result = res
				r.state = rowFinished
			}
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("refsync checkout"))
	b.WriteString("\n")

	nameWidth := 0
	for _, r := range m.rows {
		nameWidth = max(nameWidth, len(r.name))
	}

	finished := 0
	for _, r := range m.rows {
		var icon, detail string
		switch r.state {
		case rowWaiting:
			icon = styles.PendingStyle.Render("·")
			detail = styles.PendingStyle.Render("waiting")
		case rowRunning:
			icon = m.spinner.View()
			detail = fmt.Sprintf("working %s", time.Since(r.started).Round(time.Second))
		case rowFinished:
			finished++
			icon, detail = resultLine(r.result)
		}
		line := fmt.Sprintf("%s %-*s  %s", icon, nameWidth, r.name, detail)
		b.WriteString(truncate.StringWithTail(line, uint(max(m.width, 20)), "…"))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("%d/%d repositories done", finished, len(m.rows))
	if m.canceled && !m.done {
		status += ", canceling"
	}
	b.WriteString(styles.HelpStyle.Render(status))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(wordwrap.String("Error: "+m.err.Error(), max(m.width-2, 20))))
		b.WriteString("\n")
	}
	return b.String()
}

func resultLine(r orchestrator.Result) (string, string) {
	switch r.Status {
	case orchestrator.StatusSuccess:
		return styles.SuccessStyle.Render("✓"), r.GetMessage()
	case orchestrator.StatusFailed:
		return styles.ErrorStyle.Render("✗"), "failed"
	case orchestrator.StatusSkipped:
		return styles.WarningStyle.Render("-"), r.GetMessage()
	default:
		return styles.PendingStyle.Render("·"), "not started"
	}
}

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards orchestrator events to a bubbletea program.
type Observer struct {
	sender Sender
}

var _ orchestrator.Observer = (*Observer)(nil)

// NewObserver returns an Observer sending to s.
func NewObserver(s Sender) *Observer {
	return &Observer{sender: s}
}

// RepositoryStarted implements orchestrator.Observer.
func (o *Observer) RepositoryStarted(name string) {
	o.sender.Send(RepoStartedMsg{Name: name})
}

// RepositoryFinished implements orchestrator.Observer.
func (o *Observer) RepositoryFinished(result orchestrator.Result) {
	o.sender.Send(RepoFinishedMsg{Result: result})
}

// RunFunc performs the checkout, reporting through obs.
type RunFunc func(ctx context.Context, obs orchestrator.Observer) ([]orchestrator.Result, error)

// Run shows the progress view on out while run executes, and returns what
// run returned.
func Run(ctx context.Context, out io.Writer, names []string, logger *logging.AppLogger, run RunFunc) ([]orchestrator.Result, error) {
	if logger == nil {
		logger = logging.GetDefault()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(
		New(names, cancel, logger),
		tea.WithOutput(out),
		tea.WithoutSignalHandler(),
	)

	var (
		results []orchestrator.Result
		runErr  error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		results, runErr = run(ctx, NewObserver(program))
		program.Send(DoneMsg{Results: results, Err: runErr})
	}()

	if _, err := program.Run(); err != nil {
		// Without a view the run still completes; only its display is lost.
		logger.Debug("Progress view stopped", "error", err)
	}
	<-finished
	return results, runErr
}
