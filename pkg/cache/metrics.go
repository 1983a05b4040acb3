package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts responses served from the cache after a network failure
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripwire_cache_hits_total",
			Help: "Total number of responses served from the offline cache",
		},
	)

	// CacheMisses counts network failures with no cached copy to fall back to
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripwire_cache_misses_total",
			Help: "Total number of network failures without a cached response",
		},
	)

	// CacheWrites counts responses written through to the current generation
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripwire_cache_writes_total",
			Help: "Total number of responses written to the cache",
		},
		[]string{"source"}, // "install", "fetch"
	)

	// GenerationsEvicted counts stale generations deleted on activation
	GenerationsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripwire_cache_generations_evicted_total",
			Help: "Total number of stale cache generations deleted on activation",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripwire_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "put", "lookup", "generations", "delete"
	)
)
