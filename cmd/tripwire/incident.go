package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/tripwire-client/internal/format"
	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
	"github.com/Sternrassler/tripwire-client/pkg/logging"
)

// IncidentCmd shows one incident.
type IncidentCmd struct {
	ID      string `arg:"" help:"Incident ID."`
	Resolve bool   `help:"Mark the incident resolved after showing it."`
}

// Run loads the incident in the configured mode.
func (c *IncidentCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := g.load(ctx, false)
	if err != nil {
		return fmt.Errorf("incident: %w", err)
	}
	defer a.close()

	var src dashboard.DetailSource
	if a.cfg.DashboardMode() == dashboard.ModeLive {
		transport, err := a.newCacheTransport(ctx)
		if err != nil {
			return fmt.Errorf("incident: %w", err)
		}
		cl, err := a.newClient(transport)
		if err != nil {
			return fmt.Errorf("incident: %w", err)
		}
		src = cl
	}

	logger := logging.NewLogger("incident-detail")
	view := dashboard.NewDetailView(src, a.fallback.Detail, &logger)
	return c.run(ctx, view, a.cfg.DashboardMode(), os.Stdout)
}

func (c *IncidentCmd) run(ctx context.Context, view *dashboard.DetailView, mode dashboard.Mode, out io.Writer) error {
	d, err := view.Load(ctx, mode, c.ID)
	if err != nil {
		fmt.Fprintf(out, "warning: API unavailable, showing fallback data: %v\n", err)
	}
	printDetail(out, d, time.Now())

	if !c.Resolve {
		return nil
	}
	d, err = view.MarkResolved(ctx, mode)
	if err != nil {
		return fmt.Errorf("mark %s resolved: %w", c.ID, err)
	}
	fmt.Fprintf(out, "\n%s is now %s\n", d.ID, d.Status)
	return nil
}

// printDetail writes the incident as labelled sections.
func printDetail(out io.Writer, d incident.Detail, now time.Time) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Incident\t%s\n", d.ID)
	fmt.Fprintf(tw, "Status\t%s\n", d.Status)
	fmt.Fprintf(tw, "Severity\t%s\n", d.Severity)
	fmt.Fprintf(tw, "Cloud\t%s (%s)\n", d.Cloud, d.Region)
	fmt.Fprintf(tw, "Principal\t%s\n", d.Principal)
	fmt.Fprintf(tw, "Trigger\t%s\n", d.TriggerType)
	fmt.Fprintf(tw, "Resource\t%s\n", d.ResourceARN)
	fmt.Fprintf(tw, "Source IP\t%s\n", d.IPAddress)
	fmt.Fprintf(tw, "User agent\t%s\n", format.Truncate(d.UserAgent, 60))
	fmt.Fprintf(tw, "Detected\t%s\n", format.Timestamp(d.Timestamp, now))
	tw.Flush()

	ti := d.ThreatIndicators
	fmt.Fprintf(out, "\nThreat indicators: vpn=%t tor=%t known attacker=%t location=%s\n",
		ti.IsVPN, ti.IsTor, ti.IsKnownAttacker, ti.GeoLocation)

	if len(d.ResponseActions) > 0 {
		fmt.Fprintln(out, "\nResponse actions:")
		for _, ra := range d.ResponseActions {
			fmt.Fprintf(out, "  [%s] %s (%s)\n", ra.Status, ra.Action, format.Timestamp(ra.Timestamp, now))
		}
	}
	if len(d.Timeline) > 0 {
		fmt.Fprintln(out, "\nTimeline:")
		for _, ev := range d.Timeline {
			fmt.Fprintf(out, "  %s  %s\n", format.Timestamp(ev.Timestamp, now), ev.Event)
		}
	}
	if len(d.Evidence) > 0 {
		fmt.Fprintln(out, "\nEvidence:")
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, k := range sortedKeys(d.Evidence) {
			fmt.Fprintf(tw, "  %s\t%s\n", k, d.Evidence[k])
		}
		tw.Flush()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
