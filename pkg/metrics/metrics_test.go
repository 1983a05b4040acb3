package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/tripwire-client/internal/testutil"
	"github.com/Sternrassler/tripwire-client/pkg/client"
	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	"github.com/Sternrassler/tripwire-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if metrics.Registry == nil {
		t.Error("Registry should not be nil")
	}

	if metrics.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler_ExposesModuleMetrics(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	// One live cycle touches the client and dashboard vectors.
	if _, err := dashboard.Refresh(context.Background(), c, dashboard.ModeLive, dashboard.DefaultOptions()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	ctrl, err := dashboard.NewController(dashboard.Config{Source: c})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	ctrl.RefreshNow(context.Background())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{
		"tripwire_cache_hits_total",
		"tripwire_cache_misses_total",
		"tripwire_cache_generations_evicted_total",
		"tripwire_api_requests_total",
		"tripwire_api_request_duration_seconds",
		"tripwire_refresh_cycles_total",
		"tripwire_refresh_stale_results_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output lacks %s", name)
		}
	}
}

func TestNames_AreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, name := range metrics.Names {
		if !strings.HasPrefix(name, "tripwire_") {
			t.Errorf("metric %q lacks the tripwire_ prefix", name)
		}
		if seen[name] {
			t.Errorf("duplicate metric %q", name)
		}
		seen[name] = true
	}
}
