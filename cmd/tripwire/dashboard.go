package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/tripwire-client/internal/format"
	"github.com/Sternrassler/tripwire-client/internal/tui"
	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// DashboardCmd opens the interactive dashboard.
type DashboardCmd struct{}

// Run launches the full-screen view, or prints plain text when stdout is
// not a terminal.
func (d *DashboardCmd) Run(g *Globals) error {
	if !isTerminal(os.Stdout) {
		w := &WatchCmd{}
		return w.Run(g)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := g.load(ctx, true)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	defer a.close()

	_, ctrl, err := a.newLiveStack(ctx)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return tui.Run(ctx, ctrl, tea.WithAltScreen())
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WatchCmd prints the dashboard every time a refresh lands.
type WatchCmd struct {
	Once bool `help:"Refresh once, print and exit."`
}

// Run refreshes until interrupted.
func (w *WatchCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := g.load(ctx, false)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer a.close()

	_, ctrl, err := a.newLiveStack(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return w.run(ctx, ctrl, os.Stdout)
}

func (w *WatchCmd) run(ctx context.Context, ctrl *dashboard.Controller, out io.Writer) error {
	if w.Once {
		printState(out, ctrl.RefreshNow(ctx), time.Now())
		return nil
	}

	states := make(chan dashboard.State, 8)
	ctrl.Watch(func(st dashboard.State) {
		if st.Loading {
			return
		}
		select {
		case states <- st:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	var last uint64
	for {
		select {
		case st := <-states:
			if st.Version <= last {
				continue
			}
			last = st.Version
			printState(out, st, time.Now())
		case err := <-done:
			return err
		}
	}
}

// printState writes a plain-text rendering of st.
func printState(out io.Writer, st dashboard.State, now time.Time) {
	refreshed := "never"
	if !st.LastRefresh.IsZero() {
		refreshed = st.LastRefresh.Format(time.DateTime)
	}
	fmt.Fprintf(out, "CloudTripwire  mode=%s  last refresh=%s\n", st.Mode, refreshed)
	if st.Err != nil {
		fmt.Fprintf(out, "warning: API unavailable, showing fallback data: %v\n", st.Err)
	}

	m := st.Snapshot.Metrics
	fmt.Fprintf(out, "total=%s active=%s resolved=%s avg response=%.1fs\n",
		format.Number(m.TotalIncidents), format.Number(m.ActiveIncidents),
		format.Number(m.ResolvedIncidents), m.AvgResponseTime)
	for _, cc := range dashboard.CloudDistribution(m) {
		if cc.Count == 0 {
			continue
		}
		fmt.Fprintf(out, "  %-6s %d\n", cc.Cloud, cc.Count)
	}

	if len(st.Snapshot.TimeSeries) > 0 {
		fmt.Fprint(out, "last days:")
		for _, p := range st.Snapshot.TimeSeries {
			fmt.Fprintf(out, " %s=%d", format.ChartDate(p.Date), p.Count)
		}
		if n := len(st.Snapshot.TimeSeries); n >= 2 {
			cur, prev := st.Snapshot.TimeSeries[n-1].Count, st.Snapshot.TimeSeries[n-2].Count
			fmt.Fprintf(out, " (day over day %s)", format.Change(float64(cur), float64(prev)))
		}
		fmt.Fprintln(out)
	}

	if len(st.Snapshot.Incidents) == 0 {
		fmt.Fprintln(out, "No incidents")
		fmt.Fprintln(out)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLOUD\tPRINCIPAL\tSTATUS\tSEVERITY\tWHEN")
	for _, inc := range st.Snapshot.Incidents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inc.ID, inc.Cloud, format.Truncate(inc.Principal, 40),
			inc.Status, inc.Severity, format.Timestamp(inc.Timestamp, now))
	}
	tw.Flush()
	fmt.Fprintln(out)
}
