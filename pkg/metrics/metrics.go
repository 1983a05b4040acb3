// Package metrics exposes the Prometheus registry used by the tripwire client.
// All metrics are defined in their respective packages (cache, client, dashboard)
// to maintain modularity and avoid circular dependencies.
//
// This package provides the /metrics handler and a reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the tripwire client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry collects.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric family defined by the module.
var Names = []string{
	"tripwire_cache_hits_total",
	"tripwire_cache_misses_total",
	"tripwire_cache_writes_total",
	"tripwire_cache_generations_evicted_total",
	"tripwire_cache_errors_total",
	"tripwire_api_requests_total",
	"tripwire_api_request_duration_seconds",
	"tripwire_api_errors_total",
	"tripwire_refresh_cycles_total",
	"tripwire_refresh_stale_results_total",
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - tripwire_cache_hits_total (Counter): Responses served from the cache after a network failure
//   - tripwire_cache_misses_total (Counter): Network failures with no cached copy
//   - tripwire_cache_writes_total{source} (Counter): Entries written, by "install" or "fetch"
//   - tripwire_cache_generations_evicted_total (Counter): Stale generations deleted on activation
//   - tripwire_cache_errors_total{operation} (Counter): Store errors by operation
//
// Request Metrics (pkg/client):
//   - tripwire_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - tripwire_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - tripwire_api_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Refresh Metrics (pkg/dashboard):
//   - tripwire_refresh_cycles_total{mode, result} (Counter): Completed cycles, result "ok" or "fallback"
//   - tripwire_refresh_stale_results_total (Counter): Results dropped because a newer cycle had landed
//
// Example Prometheus Queries:
//
//   # Share of refresh cycles that fell back
//   sum(rate(tripwire_refresh_cycles_total{result="fallback"}[5m])) /
//   sum(rate(tripwire_refresh_cycles_total[5m]))
//
//   # Offline answers per second
//   rate(tripwire_cache_hits_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(tripwire_api_request_duration_seconds_bucket[5m]))
