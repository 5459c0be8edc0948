package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/keypool/internal/control"
	"github.com/firefly-engineering/keypool/internal/health"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245"))

	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	countLabel    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	credColumnKey = lipgloss.NewStyle().Width(16)
)

func statusStyle(s health.Status) lipgloss.Style {
	switch s {
	case health.StatusOK:
		return okStyle
	case health.StatusDegraded:
		return warnStyle
	default:
		return errStyle
	}
}

// RenderStatus formats a status response for the terminal.
func RenderStatus(st *control.StatusResponse) string {
	return renderStatus(st, time.Now())
}

func renderStatus(st *control.StatusResponse, now time.Time) string {
	var b strings.Builder

	summary := health.Summarize(st.Stats)
	fmt.Fprintf(&b, "%s %s\n", countLabel.Render("status"), statusStyle(summary).Render(string(summary)))
	fmt.Fprintf(&b, "%s %d\n", countLabel.Render("total"), st.Stats.Total)
	fmt.Fprintf(&b, "%s %s\n", countLabel.Render("available"), okStyle.Render(fmt.Sprint(st.Stats.Available)))
	unavailable := fmt.Sprint(st.Stats.Unavailable)
	if st.Stats.Unavailable > 0 {
		unavailable = warnStyle.Render(unavailable)
	}
	fmt.Fprintf(&b, "%s %s\n", countLabel.Render("quarantined"), unavailable)
	if st.Ports.Proxy != 0 || st.Ports.Control != 0 {
		fmt.Fprintf(&b, "%s proxy %d, control %d\n", countLabel.Render("ports"), st.Ports.Proxy, st.Ports.Control)
	}

	if len(st.Credentials) == 0 {
		return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s %s %s\n",
		headerStyle.Render(credColumnKey.Render("KEY")),
		headerStyle.Render(fmt.Sprintf("%-9s", "STATE")),
		headerStyle.Render(fmt.Sprintf("%-9s", "FAILURES")),
		headerStyle.Render("LAST USED"))
	for _, c := range st.Credentials {
		state := okStyle.Render(fmt.Sprintf("%-9s", "ok"))
		if !c.Available {
			state = warnStyle.Render(fmt.Sprintf("%-9s", "quarant."))
		}
		fmt.Fprintf(&b, "%s %s %-9d %s\n",
			credColumnKey.Render(c.Key),
			state,
			c.ConsecutiveFailures,
			lastUsed(c.LastUsedAt, now))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func lastUsed(t *time.Time, now time.Time) string {
	if t == nil {
		return dimStyle.Render("never")
	}
	d := now.Sub(*t)
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
