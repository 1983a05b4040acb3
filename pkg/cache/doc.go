// Package cache provides an offline response cache for HTTP clients.
//
// The Controller is an http.RoundTripper with a network-first, cache-fallback
// policy and a versioned generation lifecycle:
//
//   - Install fetches a fixed manifest of essential resources into the current
//     generation. All of them must succeed or nothing is written.
//   - RoundTrip tries the network first. Every response it gets for a GET is
//     written through to the current generation. On a network error the
//     request is answered from any generation that holds a copy; a miss
//     surfaces the original network error.
//   - Activate deletes every generation whose name differs from the current
//     version. This is the only eviction mechanism: there is no TTL and no
//     size bound.
//
// Requests whose URL scheme is not http or https are passed to the
// underlying transport untouched.
//
// # Basic Usage
//
//	store := cache.NewRedisStore(redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	}))
//
//	ctrl, err := cache.NewController(store, cache.ControllerConfig{
//		Version:  "cloudtripwire-v2",
//		Manifest: []string{"/", "/index.html"},
//		BaseURL:  "http://127.0.0.1:5173",
//	})
//	if err != nil {
//		return err
//	}
//
//	if err := ctrl.Install(ctx); err != nil {
//		return err // activation is not possible until Install succeeds
//	}
//	if _, err := ctrl.Activate(ctx); err != nil {
//		return err
//	}
//
//	httpClient := &http.Client{Transport: ctrl}
//
// # Stores
//
// MemoryStore keeps generations in process memory. RedisStore keeps one hash
// per generation (tripwire:cache:gen:<name>) and a sorted set of generation
// names (tripwire:cache:generations) ordered by creation time, so lookups
// across generations follow creation order.
//
// # Metrics
//
//   - tripwire_cache_hits_total - responses served from cache after a network failure
//   - tripwire_cache_misses_total - network failures without a cached copy
//   - tripwire_cache_writes_total{source} - entries written ("install", "fetch")
//   - tripwire_cache_generations_evicted_total - stale generations deleted
//   - tripwire_cache_errors_total{operation} - store errors
package cache
