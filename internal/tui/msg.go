package tui

import "github.com/Sternrassler/tripwire-client/pkg/dashboard"

// StateMsg carries a controller state into the program.
type StateMsg struct {
	State dashboard.State
}
