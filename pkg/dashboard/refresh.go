package dashboard

import (
	"context"
	"fmt"

	"github.com/Sternrassler/tripwire-client/pkg/client"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
)

// Defaults for a live refresh cycle.
const (
	DefaultIncidentLimit = 10
	DefaultDays          = 7
)

// Source is the subset of the incidents API a refresh cycle reads.
// *client.Client implements it.
type Source interface {
	Metrics(ctx context.Context) (incident.Metrics, error)
	Incidents(ctx context.Context, q client.IncidentQuery) ([]incident.Incident, error)
	TimeSeries(ctx context.Context, days int) ([]incident.TimeSeriesPoint, error)
}

// Snapshot is everything the dashboard displays at one point in time.
type Snapshot struct {
	Metrics    incident.Metrics
	Incidents  []incident.Incident
	TimeSeries []incident.TimeSeriesPoint
}

// SnapshotFromDataset builds a snapshot from a fallback dataset.
func SnapshotFromDataset(ds incident.Dataset) Snapshot {
	ds = ds.Clone()
	return Snapshot{
		Metrics:    ds.Metrics,
		Incidents:  ds.Incidents,
		TimeSeries: ds.TimeSeries,
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Metrics: s.Metrics}
	if s.Incidents != nil {
		out.Incidents = append([]incident.Incident(nil), s.Incidents...)
	}
	if s.TimeSeries != nil {
		out.TimeSeries = append([]incident.TimeSeriesPoint(nil), s.TimeSeries...)
	}
	return out
}

// Options parameterise a refresh cycle.
type Options struct {
	// IncidentLimit is sent as the limit of the incident list request.
	IncidentLimit int

	// Days is the time-series window.
	Days int

	// Fallback is served in snapshot mode and after a failed live cycle.
	Fallback incident.Dataset
}

// DefaultOptions returns the options used by the dashboard: 10 incidents,
// a 7 day window and the built-in fallback dataset.
func DefaultOptions() Options {
	return Options{
		IncidentLimit: DefaultIncidentLimit,
		Days:          DefaultDays,
		Fallback:      incident.Builtin(),
	}
}

// Refresh produces a snapshot for mode.
//
// In snapshot mode it returns the fallback data and never calls src. In
// live mode it fetches metrics, incidents and the time series concurrently.
// If any request fails, the remaining ones are cancelled and the returned
// snapshot is the complete fallback dataset, alongside the first error.
// The returned snapshot is never partial.
func Refresh(ctx context.Context, src Source, mode Mode, opts Options) (Snapshot, error) {
	fallback := SnapshotFromDataset(opts.Fallback)

	switch mode {
	case ModeSnapshot:
		return fallback, nil
	case ModeLive:
	default:
		return fallback, fmt.Errorf("unknown dashboard mode %q", mode)
	}
	if src == nil {
		return fallback, fmt.Errorf("live mode requires a data source")
	}

	limit := opts.IncidentLimit
	if limit <= 0 {
		limit = DefaultIncidentLimit
	}
	days := opts.Days
	if days <= 0 {
		days = DefaultDays
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		metrics   incident.Metrics
		incidents []incident.Incident
		series    []incident.TimeSeriesPoint
	)

	// Each fetch writes only its own variable; the channel receive below
	// orders those writes before the reads.
	errs := make(chan error, 3)
	fetch := func(f func() error) {
		go func() { errs <- f() }()
	}
	fetch(func() (err error) {
		metrics, err = src.Metrics(ctx)
		return err
	})
	fetch(func() (err error) {
		incidents, err = src.Incidents(ctx, client.IncidentQuery{Limit: limit})
		return err
	})
	fetch(func() (err error) {
		series, err = src.TimeSeries(ctx, days)
		return err
	})

	for range 3 {
		if err := <-errs; err != nil {
			return fallback, err
		}
	}

	if incidents == nil {
		incidents = []incident.Incident{}
	}
	if series == nil {
		series = []incident.TimeSeriesPoint{}
	}
	return Snapshot{Metrics: metrics, Incidents: incidents, TimeSeries: series}, nil
}

// CloudCount is one bar of the per-cloud distribution chart.
type CloudCount struct {
	Cloud incident.Cloud
	Count int
}

// CloudDistribution derives per-cloud incident counts from the metrics.
// The API reports no GCP counter, so GCP is always zero.
func CloudDistribution(m incident.Metrics) []CloudCount {
	return []CloudCount{
		{Cloud: incident.CloudAWS, Count: m.AWSIncidents},
		{Cloud: incident.CloudAzure, Count: m.AzureIncidents},
		{Cloud: incident.CloudGCP, Count: 0},
	}
}
