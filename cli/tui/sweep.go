package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/launch"
	"github.com/pithecene-io/ferry/stress"
)

// ResultMsg reports one completed scenario to the dashboard.
type ResultMsg struct {
	Scenario launch.Scenario
	Result   *ipc.ResultEvent
}

// DoneMsg reports that the sweep finished.
type DoneMsg struct {
	Err error
}

// resultLine is a completed scenario rendered into one row.
type resultLine struct {
	label  string
	detail string
	failed bool
}

// SweepModel is the Bubble Tea model for a running sweep.
type SweepModel struct {
	total    int
	results  []resultLine
	spinner  spinner.Model
	progress progress.Model
	events   <-chan tea.Msg
	done     bool
	err      error
	quitting bool
}

// NewSweepModel builds the dashboard for a sweep of total scenarios whose
// completion events arrive on the given channel.
func NewSweepModel(total int, events <-chan tea.Msg) SweepModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipglossSpinnerStyle
	return SweepModel{
		total:    total,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		events:   events,
	}
}

var lipglossSpinnerStyle = SuccessStyle

// waitForEvent blocks for the next orchestrator message.
func (m SweepModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// Init starts the spinner and the event pump.
func (m SweepModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// Update handles key presses, spinner ticks, and sweep events.
func (m SweepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ResultMsg:
		m.results = append(m.results, renderResult(msg))
		return m, m.waitForEvent()

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

// View renders the dashboard.
func (m SweepModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("ferry sweep"))
	b.WriteString("\n")

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(len(m.results)) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(ratio))
	b.WriteString(fmt.Sprintf("  %d/%d", len(m.results), m.total))
	b.WriteString("\n\n")

	var rows []string
	for _, line := range m.results {
		style := SuccessStyle
		if line.failed {
			style = FailStyle
		}
		rows = append(rows, ScenarioStyle.Render(line.label)+"  "+style.Render(line.detail))
	}
	if !m.done {
		rows = append(rows, m.spinner.View()+" running...")
	}
	b.WriteString(BoxStyle.Render(strings.Join(rows, "\n")))

	if m.done {
		if m.err != nil {
			b.WriteString("\n" + FailStyle.Render("sweep failed: "+m.err.Error()))
		} else {
			b.WriteString("\n" + SuccessStyle.Render("sweep complete"))
		}
	}
	b.WriteString("\n" + HelpStyle.Render("q: quit"))
	return b.String()
}

func renderResult(msg ResultMsg) resultLine {
	detail := fmt.Sprintf("avg %.3fs  %s  ok=%d fail=%d",
		msg.Result.AvgSeconds,
		stress.FormatRate(msg.Result.ThroughputBps),
		msg.Result.Success,
		msg.Result.Fail,
	)
	return resultLine{
		label:  msg.Scenario.Name(),
		detail: detail,
		failed: msg.Result.Fail > 0,
	}
}

// RunSweep drives the dashboard for a sweep already running elsewhere.
// The caller pushes ResultMsg per scenario and one final DoneMsg onto
// events.
func RunSweep(total int, events <-chan tea.Msg) error {
	_, err := tea.NewProgram(NewSweepModel(total, events)).Run()
	return err
}
