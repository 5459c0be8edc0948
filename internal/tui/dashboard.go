package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/keypool/internal/control"
)

// DefaultPollInterval is how often the dashboard refreshes.
const DefaultPollInterval = 2 * time.Second

// StatusFetcher loads the current status from the control surface.
type StatusFetcher func(ctx context.Context) (*control.StatusResponse, error)

type statusMsg struct {
	status *control.StatusResponse
	err    error
	at     time.Time
}

// tickMsg schedules the next poll; stale sequence numbers are ignored.
type tickMsg struct{ seq int }

// Model is the bubbletea model for the live dashboard
type Model struct {
	fetch    StatusFetcher
	target   string
	interval time.Duration

	spinner  spinner.Model
	status   *control.StatusResponse
	err      error
	loading  bool
	lastPoll time.Time
	seq      int
	quitting bool
	width    int
}

// NewDashboard creates a dashboard polling fetch every interval.
func NewDashboard(fetch StatusFetcher, target string, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return Model{
		fetch:    fetch,
		target:   target,
		interval: interval,
		spinner:  s,
		loading:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m Model) poll() tea.Cmd {
	fetch, timeout := m.fetch, m.interval
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
		defer cancel()
		st, err := fetch(ctx)
		return statusMsg{status: st, err: err, at: time.Now()}
	}
}

func (m Model) schedule() tea.Cmd {
	seq := m.seq
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{seq: seq}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if !m.loading {
				m.loading = true
				m.seq++
				return m, m.poll()
			}
		}
		return m, nil

	case statusMsg:
		m.loading = false
		m.lastPoll = msg.at
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		m.seq++
		return m, m.schedule()

	case tickMsg:
		if msg.seq != m.seq || m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("keypool - " + m.target))
	b.WriteString("\n")

	switch {
	case m.loading:
		fmt.Fprintf(&b, "%s polling...\n", m.spinner.View())
	case !m.lastPoll.IsZero():
		b.WriteString(dimStyle.Render("updated " + m.lastPoll.Format("15:04:05")))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	if m.status != nil {
		b.WriteString(renderStatus(m.status, time.Now()))
		b.WriteString("\n")
	} else if m.err == nil {
		b.WriteString(dimStyle.Render("waiting for first status..."))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("r: refresh • q: quit"))
	return b.String()
}

// RunDashboard runs the dashboard until the user quits.
func RunDashboard(fetch StatusFetcher, target string, interval time.Duration) error {
	p := tea.NewProgram(NewDashboard(fetch, target, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
