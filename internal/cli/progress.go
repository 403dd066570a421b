package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
)

const barWidth = 40

// ProgressMsg carries one render progress event into the view
type ProgressMsg render.Progress

// DoneMsg reports the outcome of the render
type DoneMsg struct {
	URLs *model.OutputURLs
	Err  error
}

// eventsClosedMsg signals the progress channel was closed
type eventsClosedMsg struct{}

// Model is the Bubbletea model for a single render
type Model struct {
	Title   string
	Stage   render.Stage
	Percent int
	Message string

	StartTime time.Time
	Elapsed   time.Duration

	Done      bool
	Cancelled bool
	URLs      *model.OutputURLs
	Err       error

	events <-chan render.Progress
	cancel func()
}

// NewModel creates a progress model reading from events. cancel is called
// when the user quits before the render finishes.
func NewModel(title string, events <-chan render.Progress, cancel func()) Model {
	return Model{
		Title:     title,
		StartTime: time.Now(),
		events:    events,
		cancel:    cancel,
	}
}

// Init starts listening for progress
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.events)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.Done && m.cancel != nil {
				m.cancel()
				m.Cancelled = true
			}
			return m, tea.Quit
		}

	case ProgressMsg:
		// a late event never moves the bar backwards
		if msg.Percent >= m.Percent {
			m.Percent = msg.Percent
		}
		m.Stage = msg.Stage
		m.Message = msg.Message
		m.Elapsed = time.Since(m.StartTime)
		return m, waitForProgress(m.events)

	case eventsClosedMsg:
		return m, nil

	case DoneMsg:
		m.Done = true
		m.URLs = msg.URLs
		m.Err = msg.Err
		m.Elapsed = time.Since(m.StartTime)
		if msg.Err == nil {
			m.Percent = 100
		}
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(renderProgressBar(m.Percent, barWidth))
	b.WriteString("\n")

	switch {
	case m.Done && m.Err != nil:
		b.WriteString(ErrorStyle.Render("✗ " + m.Err.Error()))
	case m.Done:
		b.WriteString(SuccessStyle.Render("✓ Render completed"))
	case m.Cancelled:
		b.WriteString(KeyStyle.Render("Cancelling..."))
	default:
		stage := lipgloss.NewStyle().Foreground(primaryColor).Render(fmt.Sprintf("%-12s", m.Stage))
		b.WriteString(fmt.Sprintf("%s %s", stage, m.Message))
	}
	b.WriteString("\n")
	b.WriteString(KeyStyle.Render(fmt.Sprintf("Elapsed %s  (q to cancel)", m.Elapsed.Round(time.Second))))
	b.WriteString("\n")

	return b.String()
}

// renderProgressBar renders a progress bar
func renderProgressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %3d%%", bar, percent)
}

// waitForProgress creates a command that waits for the next progress event
func waitForProgress(events <-chan render.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return ProgressMsg(p)
	}
}

// PrintPlain writes one line per progress event until events is closed
func PrintPlain(w io.Writer, events <-chan render.Progress) {
	for p := range events {
		fmt.Fprintf(w, "[%3d%%] %-11s %s\n", p.Percent, p.Stage, p.Message)
	}
}
