// Package tui implements the terminal dashboard: metric cards, the
// per-cloud distribution, the daily trigger series and the latest
// incidents, kept current by a dashboard.Controller.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/tripwire-client/internal/format"
	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controller is what the model needs from a dashboard.Controller.
type Controller interface {
	State() dashboard.State
	Trigger() bool
	ToggleMode() dashboard.Mode
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	ctrl  Controller
	state dashboard.State

	// errDismissed hides the error line until the next applied cycle.
	errDismissed bool

	width   int
	height  int
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	now     func() time.Time
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithClock sets the time source used for relative timestamps.
func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) {
		m.now = now
	}
}

// NewModel creates a Model showing the controller's current state.
func NewModel(ctrl Controller, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		ctrl:    ctrl,
		state:   ctrl.State(),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		// Notifications may arrive out of order.
		if msg.State.Version < m.state.Version {
			return m, nil
		}
		if !msg.State.LastRefresh.Equal(m.state.LastRefresh) {
			m.errDismissed = false
		}
		m.state = msg.State
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.ctrl.Trigger()
		case key.Matches(msg, m.keys.Mode):
			m.state.Mode = m.ctrl.ToggleMode()
		case key.Matches(msg, m.keys.Dismiss):
			m.errDismissed = true
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	sections := []string{m.viewHeader()}
	if line := m.viewError(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections,
		m.viewCards(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.viewClouds(), "    ", m.viewSeries()),
		m.viewIncidents(),
		m.help.View(m.keys),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewHeader() string {
	refreshed := "never"
	if !m.state.LastRefresh.IsZero() {
		refreshed = m.state.LastRefresh.Format("15:04:05")
	}
	line := fmt.Sprintf("%s  %s  %s",
		titleStyle.Render("CloudTripwire"),
		ModeBadge(m.state.Mode),
		dimStyle.Render("last refresh "+refreshed),
	)
	if m.state.Loading {
		line += " " + m.spinner.View()
	}
	return line
}

func (m Model) viewError() string {
	if m.state.Err == nil || m.errDismissed {
		return ""
	}
	return errorStyle.Render(fmt.Sprintf("⚠ API unavailable, showing fallback data: %v", m.state.Err)) +
		dimStyle.Render("  (x to dismiss)")
}

func (m Model) viewCards() string {
	mt := m.state.Snapshot.Metrics
	type card struct{ label, value string }
	cards := []card{
		{"Total", format.Number(mt.TotalIncidents)},
		{"Active", format.Number(mt.ActiveIncidents)},
		{"AWS", format.Number(mt.AWSIncidents)},
		{"Azure", format.Number(mt.AzureIncidents)},
		{"Resolved", format.Number(mt.ResolvedIncidents)},
		{"Avg response", fmt.Sprintf("%.1fs", mt.AvgResponseTime)},
	}
	if latest, delta, ok := lastDayChange(m.state.Snapshot.TimeSeries); ok {
		cards = append(cards, card{"Last day", fmt.Sprintf("%s %s", format.Number(latest), delta)})
	}

	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		rendered = append(rendered, cardStyle.Render(dimStyle.Render(c.label)+"\n"+titleStyle.Render(c.value)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) viewClouds() string {
	dist := dashboard.CloudDistribution(m.state.Snapshot.Metrics)
	max := 0
	for _, d := range dist {
		if d.Count > max {
			max = d.Count
		}
	}

	lines := []string{dimStyle.Render("Incidents by cloud")}
	shown := 0
	for _, d := range dist {
		if d.Count == 0 {
			continue
		}
		shown++
		lines = append(lines, cloudLabelStyle.Render(CloudBadge(d.Cloud))+fmt.Sprintf("%-20s %d", Bar(d.Count, max, 20), d.Count))
	}
	if shown == 0 {
		lines = append(lines, dimStyle.Render("no data"))
	}
	return strings.Join(lines, "\n")
}

// lastDayChange returns the newest day's count and its change against the
// day before. It needs at least two points.
func lastDayChange(series []incident.TimeSeriesPoint) (int, format.Delta, bool) {
	if len(series) < 2 {
		return 0, format.Delta{}, false
	}
	cur, prev := series[len(series)-1].Count, series[len(series)-2].Count
	return cur, format.Change(float64(cur), float64(prev)), true
}

func (m Model) viewSeries() string {
	series := m.state.Snapshot.TimeSeries
	lines := []string{dimStyle.Render(fmt.Sprintf("Triggers, last %d days", len(series)))}
	if len(series) == 0 {
		return strings.Join(append(lines, dimStyle.Render("no data")), "\n")
	}

	counts := make([]int, len(series))
	total := 0
	for i, p := range series {
		counts[i] = p.Count
		total += p.Count
	}
	lines = append(lines,
		Sparkline(counts),
		dimStyle.Render(fmt.Sprintf("%s – %s  total %s",
			format.ChartDate(series[0].Date),
			format.ChartDate(series[len(series)-1].Date),
			format.Number(total))),
	)
	return strings.Join(lines, "\n")
}

func (m Model) viewIncidents() string {
	incidents := m.state.Snapshot.Incidents
	if len(incidents) == 0 {
		return dimStyle.Render("No incidents")
	}

	now := m.now()
	rows := make([]table.Row, 0, len(incidents))
	for _, inc := range incidents {
		rows = append(rows, table.Row{
			inc.ID,
			string(inc.Cloud),
			format.Truncate(inc.Principal, 36),
			inc.TriggerType,
			string(inc.Severity),
			string(inc.Status),
			format.Timestamp(inc.Timestamp, now),
		})
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 9},
			{Title: "Cloud", Width: 6},
			{Title: "Principal", Width: 39},
			{Title: "Trigger", Width: 20},
			{Title: "Severity", Width: 9},
			{Title: "Status", Width: 9},
			{Title: "When", Width: 24},
		}),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
		table.WithFocused(false),
	)
	return t.View()
}
