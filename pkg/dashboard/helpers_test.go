package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/tripwire-client/internal/testutil"
	"github.com/Sternrassler/tripwire-client/pkg/client"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// newAPIClient returns a client for the mock API with a short timeout.
func newAPIClient(t *testing.T, mock *testutil.MockAPI) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 300 * time.Millisecond
	cfg.Logger = nopLogger()
	c, err := client.New(cfg)
	require.NoError(t, err)
	return c
}

func newTestController(t *testing.T, src Source, mode Mode, interval time.Duration) *Controller {
	t.Helper()
	ctrl, err := NewController(Config{
		Source:   src,
		Mode:     mode,
		Interval: interval,
		Logger:   nopLogger(),
	})
	require.NoError(t, err)
	return ctrl
}

func fallbackSnapshot() Snapshot {
	return SnapshotFromDataset(incident.Builtin())
}

// countingSource records every call and never succeeds unless told to.
type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSource) record() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingSource) Metrics(context.Context) (incident.Metrics, error) {
	s.record()
	return incident.Metrics{}, nil
}

func (s *countingSource) Incidents(context.Context, client.IncidentQuery) ([]incident.Incident, error) {
	s.record()
	return nil, nil
}

func (s *countingSource) TimeSeries(context.Context, int) ([]incident.TimeSeriesPoint, error) {
	s.record()
	return nil, nil
}

// gatedSource numbers its cycles through Metrics. The first Metrics call
// blocks until gate is closed and ignores cancellation; later calls return
// at once. Each cycle reports its number as TotalIncidents.
type gatedSource struct {
	gate    chan struct{}
	blocked chan struct{}

	mu sync.Mutex
	n  int
}

func newGatedSource() *gatedSource {
	return &gatedSource{gate: make(chan struct{}), blocked: make(chan struct{})}
}

func (s *gatedSource) Metrics(context.Context) (incident.Metrics, error) {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()

	if n == 1 {
		close(s.blocked)
		<-s.gate
	}
	return incident.Metrics{TotalIncidents: n}, nil
}

func (s *gatedSource) Incidents(context.Context, client.IncidentQuery) ([]incident.Incident, error) {
	return []incident.Incident{}, nil
}

func (s *gatedSource) TimeSeries(context.Context, int) ([]incident.TimeSeriesPoint, error) {
	return []incident.TimeSeriesPoint{}, nil
}

func (s *gatedSource) waitBlocked(t *testing.T) {
	t.Helper()
	select {
	case <-s.blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never reached the source")
	}
}
