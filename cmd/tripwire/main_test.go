package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/tripwire-client/internal/testutil"
	"github.com/Sternrassler/tripwire-client/pkg/cache"
	"github.com/Sternrassler/tripwire-client/pkg/client"
	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGlobalsLoad_FlagOverridesConfigFile(t *testing.T) {
	path := writeFile(t, "tripwire.yaml", `
api:
  baseURL: http://api.internal:8000/api
dashboard:
  mode: live
  interval: 30s
`)

	g := &Globals{Config: path, Mode: "snapshot"}
	a, err := g.load(context.Background(), true)
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, "http://api.internal:8000/api", a.cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, a.cfg.Dashboard.Interval)
	assert.Equal(t, dashboard.ModeSnapshot, a.cfg.DashboardMode())
	assert.Equal(t, incident.Builtin().Detail.ID, a.fallback.Detail.ID)
}

func TestGlobalsLoad_InvalidModeOverride(t *testing.T) {
	g := &Globals{Mode: "offline"}
	_, err := g.load(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}

func TestGlobalsLoad_FallbackFile(t *testing.T) {
	fallback := writeFile(t, "fallback.yaml", `
detail:
  id: inc-900
  cloud: GCP
  status: Active
`)
	cfgPath := writeFile(t, "tripwire.yaml", "dashboard:\n  fallbackFile: "+fallback+"\n")

	g := &Globals{Config: cfgPath}
	a, err := g.load(context.Background(), true)
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, "inc-900", a.fallback.Detail.ID)
	assert.Equal(t, incident.Builtin().Incidents, a.fallback.Incidents)
}

func TestGlobalsLoad_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tripwire.log")
	g := &Globals{LogFile: logPath}
	a, err := g.load(context.Background(), true)
	require.NoError(t, err)

	a.logger.Info().Msg("hello from test")
	a.close()

	buf, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(buf), "hello from test")
}

func TestNewStore(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer server.Close()

	a := &app{logger: zerolog.Nop()}
	a.cfg.Cache.Backend = "memory"
	store, err := a.newStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, store)

	a.cfg.Cache.Backend = "redis"
	a.cfg.Cache.Redis.Address = server.Addr()
	store, err = a.newStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisStore{}, store)
	a.close()

	server.Close()
	_, err = a.newStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func newLiveController(t *testing.T, mock *testutil.MockAPI, interval time.Duration) *dashboard.Controller {
	t.Helper()
	logger := zerolog.Nop()
	c, err := client.New(client.Config{BaseURL: mock.URL(), Timeout: time.Second, Logger: &logger})
	require.NoError(t, err)
	ctrl, err := dashboard.NewController(dashboard.Config{
		Source:   c,
		Mode:     dashboard.ModeLive,
		Interval: interval,
		Logger:   &logger,
	})
	require.NoError(t, err)
	return ctrl
}

func TestWatchOnce_PrintsLiveData(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var out bytes.Buffer
	w := &WatchCmd{Once: true}
	require.NoError(t, w.run(context.Background(), newLiveController(t, mock, time.Hour), &out))

	got := out.String()
	assert.Contains(t, got, "mode=live")
	assert.Contains(t, got, "live-101")
	assert.Contains(t, got, "total=6 active=4 resolved=2")
	assert.NotContains(t, got, "warning:")
}

// lockedBuffer is a bytes.Buffer safe for one writer and one reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_PrintsEveryCycleUntilCancelled(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		w := &WatchCmd{}
		done <- w.run(ctx, newLiveController(t, mock, 20*time.Millisecond), out)
	}()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "CloudTripwire") >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestPrintState_Fallback(t *testing.T) {
	st := dashboard.State{
		Snapshot:    dashboard.SnapshotFromDataset(incident.Builtin()),
		Mode:        dashboard.ModeLive,
		Err:         errors.New("connection refused"),
		LastRefresh: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}

	var out bytes.Buffer
	printState(&out, st, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	got := out.String()
	assert.Contains(t, got, "last refresh=2026-10-19 12:00:00")
	assert.Contains(t, got, "warning: API unavailable, showing fallback data: connection refused")
	assert.Contains(t, got, "inc-001")
	assert.Contains(t, got, "AWS    28")
	assert.NotContains(t, got, "GCP", "clouds without incidents are hidden")
	assert.Contains(t, got, "(day over day -66.7%)")
}

func TestPrintState_Empty(t *testing.T) {
	var out bytes.Buffer
	printState(&out, dashboard.State{Mode: dashboard.ModeSnapshot}, time.Now())

	got := out.String()
	assert.Contains(t, got, "last refresh=never")
	assert.Contains(t, got, "No incidents")
}

func TestIncidentCmd_LiveResolve(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	logger := zerolog.Nop()
	c, err := client.New(client.Config{BaseURL: mock.URL(), Timeout: time.Second, Logger: &logger})
	require.NoError(t, err)
	view := dashboard.NewDetailView(c, incident.Builtin().Detail, &logger)

	var out bytes.Buffer
	cmd := &IncidentCmd{ID: "live-101", Resolve: true}
	require.NoError(t, cmd.run(context.Background(), view, dashboard.ModeLive, &out))

	got := out.String()
	assert.Contains(t, got, "live-101")
	assert.Contains(t, got, "curl/8.4.0")
	assert.Contains(t, got, "live-101 is now Resolved")
	assert.Equal(t, 1, mock.RequestCount("PATCH", "/incident/live-101"))
	assert.Equal(t, incident.StatusResolved, mock.Status("live-101"))
}

func TestIncidentCmd_SnapshotUsesFallback(t *testing.T) {
	logger := zerolog.Nop()
	view := dashboard.NewDetailView(nil, incident.Builtin().Detail, &logger)

	var out bytes.Buffer
	cmd := &IncidentCmd{ID: "inc-777"}
	require.NoError(t, cmd.run(context.Background(), view, dashboard.ModeSnapshot, &out))

	got := out.String()
	assert.Contains(t, got, "inc-777")
	assert.Contains(t, got, "honeypot-bucket-prod")
	assert.Contains(t, got, "Response actions:")
	assert.NotContains(t, got, "warning:")
}

func TestIncidentCmd_LiveFailureFallsBack(t *testing.T) {
	mock := testutil.NewMockAPI()
	mock.SetResponse("/incident/live-101", testutil.NewServerErrorResponse())
	defer mock.Close()

	logger := zerolog.Nop()
	c, err := client.New(client.Config{BaseURL: mock.URL(), Timeout: time.Second, Logger: &logger})
	require.NoError(t, err)
	view := dashboard.NewDetailView(c, incident.Builtin().Detail, &logger)

	var out bytes.Buffer
	cmd := &IncidentCmd{ID: "live-101", Resolve: true}
	err = cmd.run(context.Background(), view, dashboard.ModeLive, &out)
	require.Error(t, err)

	got := out.String()
	assert.Contains(t, got, "warning: API unavailable")
	assert.Contains(t, got, "honeypot-bucket-prod")
	assert.NotContains(t, got, "is now Resolved")
}
