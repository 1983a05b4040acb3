package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the dashboard key bindings.
type keyMap struct {
	Refresh key.Binding
	Mode    key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

// ShortHelp returns the bindings for the help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Mode, k.Dismiss, k.Quit}
}

// FullHelp returns the bindings grouped for expanded help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Mode},
		{k.Dismiss, k.Quit},
	}
}

// DefaultKeyMap returns the dashboard key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Mode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "live/snapshot"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss error"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
