package tui

import (
	"strings"

	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorDim    = lipgloss.AdaptiveColor{Light: "240", Dark: "245"}
	colorAccent = lipgloss.AdaptiveColor{Light: "4", Dark: "12"}
	colorGood   = lipgloss.AdaptiveColor{Light: "2", Dark: "10"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "3", Dark: "11"}
	colorBad    = lipgloss.AdaptiveColor{Light: "1", Dark: "9"}
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	errorStyle = lipgloss.NewStyle().Foreground(colorBad)

	cloudLabelStyle = lipgloss.NewStyle().Width(7)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1).
			Width(16)
)

// cloudColors follows the usual provider palette.
var cloudColors = map[incident.Cloud]lipgloss.AdaptiveColor{
	incident.CloudAWS:   {Light: "208", Dark: "214"},
	incident.CloudAzure: {Light: "4", Dark: "39"},
	incident.CloudGCP:   {Light: "1", Dark: "203"},
}

// ModeBadge renders the data-source mode.
func ModeBadge(mode dashboard.Mode) string {
	if mode == dashboard.ModeLive {
		return lipgloss.NewStyle().Bold(true).Foreground(colorGood).Render("● LIVE")
	}
	return lipgloss.NewStyle().Bold(true).Foreground(colorWarn).Render("◆ SNAPSHOT")
}

// CloudBadge renders a cloud name in its provider color.
func CloudBadge(cloud incident.Cloud) string {
	c, ok := cloudColors[cloud]
	if !ok {
		c = colorDim
	}
	return lipgloss.NewStyle().Foreground(c).Render(string(cloud))
}

// StatusBadge renders an incident status.
func StatusBadge(status incident.Status) string {
	if status == incident.StatusActive {
		return lipgloss.NewStyle().Foreground(colorBad).Render(string(status))
	}
	return lipgloss.NewStyle().Foreground(colorGood).Render(string(status))
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws one block per value, scaled to the largest value.
func Sparkline(values []int) string {
	max := 0
	for _, v := range values {
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if max > 0 && v > 0 {
			idx = v * (len(sparkBlocks) - 1) / max
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// Bar draws a horizontal bar of n cells out of total width.
func Bar(n, max, width int) string {
	if max <= 0 || n <= 0 || width <= 0 {
		return ""
	}
	cells := n * width / max
	if cells == 0 {
		cells = 1
	}
	return strings.Repeat("█", cells)
}
