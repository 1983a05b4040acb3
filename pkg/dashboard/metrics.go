package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for refresh cycles.
var (
	refreshCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_refresh_cycles_total",
		Help: "Total completed refresh cycles by mode and result",
	}, []string{"mode", "result"})

	refreshStaleResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripwire_refresh_stale_results_total",
		Help: "Total refresh results discarded because a newer cycle was already applied",
	})
)

// Cycle results used as metric labels.
const (
	resultOK       = "ok"
	resultFallback = "fallback"
)
