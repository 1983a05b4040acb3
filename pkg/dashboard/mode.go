package dashboard

import (
	"fmt"
	"strings"
)

// Mode selects where dashboard data comes from.
type Mode string

const (
	// ModeLive fetches from the incidents API.
	ModeLive Mode = "live"

	// ModeSnapshot serves the static fallback dataset.
	ModeSnapshot Mode = "snapshot"
)

// ParseMode parses a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLive:
		return ModeLive, nil
	case ModeSnapshot:
		return ModeSnapshot, nil
	default:
		return "", fmt.Errorf("unknown dashboard mode %q (want %q or %q)", s, ModeLive, ModeSnapshot)
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeLive {
		return ModeSnapshot
	}
	return ModeLive
}

func (m Mode) String() string {
	return string(m)
}
