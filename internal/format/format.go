// Package format renders incident data for terminal output.
package format

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultTruncateLength is the length Truncate uses when given zero.
const DefaultTruncateLength = 50

const (
	fullLayout  = "Jan 2, 2006, 03:04 PM"
	chartLayout = "Jan 2"
)

var printer = message.NewPrinter(language.English)

// Timestamp renders an ISO-8601 timestamp relative to now: "N mins ago"
// under an hour, "N hours ago" under a day, otherwise the full date in
// now's location. Empty input gives "N/A"; unparsable input is returned
// unchanged.
func Timestamp(iso string, now time.Time) string {
	if iso == "" {
		return "N/A"
	}
	t, err := parseTime(iso)
	if err != nil {
		return iso
	}

	mins := int(now.Sub(t) / time.Minute)
	if mins < 0 {
		mins = 0
	}
	switch {
	case mins < 60:
		return plural(mins, "min") + " ago"
	case mins < 24*60:
		return plural(mins/60, "hour") + " ago"
	default:
		return t.In(now.Location()).Format(fullLayout)
	}
}

// ChartDate renders a date as "Jan 2".
func ChartDate(iso string) string {
	t, err := parseTime(iso)
	if err != nil {
		return iso
	}
	return t.Format(chartLayout)
}

// Truncate shortens s to max runes and appends "..." when it was cut.
// A max of zero or less uses DefaultTruncateLength.
func Truncate(s string, max int) string {
	if max <= 0 {
		max = DefaultTruncateLength
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Number renders n with thousands separators.
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Direction of a change between two values.
type Direction string

const (
	Up      Direction = "up"
	Down    Direction = "down"
	Neutral Direction = "neutral"
)

// Delta is a percentage change.
type Delta struct {
	// Percent is the absolute change with one decimal, e.g. "12.5".
	Percent   string
	Direction Direction
}

// Change computes the percentage change from previous to current. A zero
// previous value yields a neutral zero change.
func Change(current, previous float64) Delta {
	if previous == 0 {
		return Delta{Percent: "0", Direction: Neutral}
	}
	pct := (current - previous) / previous * 100
	d := Delta{Percent: fmt.Sprintf("%.1f", math.Abs(pct)), Direction: Neutral}
	switch {
	case pct > 0:
		d.Direction = Up
	case pct < 0:
		d.Direction = Down
	}
	return d
}

func (d Delta) String() string {
	switch d.Direction {
	case Up:
		return "+" + d.Percent + "%"
	case Down:
		return "-" + d.Percent + "%"
	default:
		return d.Percent + "%"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// parseTime accepts RFC 3339 timestamps and bare dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
