// Package cache provides HTTP response caching primitives: deterministic
// cache keys, immutable cache entries, freshness evaluation and a Store
// contract with in-memory, Redis and SQLite backends.
//
// The package implements the following features:
//
// - Freshness from Cache-Control max-age, or Expires minus Date
// - ETag and Last-Modified validators for conditional requests
// - no-store / no-cache responses are never stored
// - Entries replaced wholesale, never mutated after being stored
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store := cache.NewMemoryStore(0)
//
//	key, err := cache.DeriveKey(http.MethodGet, "https://api.example.com/widgets/1", nil, nil)
//	if err != nil {
//		return err
//	}
//
//	entry, err := store.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch from origin
//	case errors.Is(err, cache.ErrBackendUnavailable):
//		// degrade to a direct request
//	}
//
// # Freshness
//
//	switch cache.Classify(entry, time.Now()) {
//	case cache.Fresh:
//		// serve entry.Body
//	case cache.StaleRevalidatable:
//		h := cache.ConditionalHeaders(entry)
//		// send request with h; on 304 use cache.Refresh
//	}
//
// # Backends
//
// MemoryStore keeps entries in process, optionally LRU-bounded.
// RedisStore talks to a Redis server with go-redis; backend failures are
// reported as ErrBackendUnavailable, never as ErrCacheMiss. SQLiteStore
// persists entries to a local database file.
//
// # Metrics
//
//   - httpcache_cache_hits_total{layer} - Cache hits
//   - httpcache_cache_misses_total - Cache misses
//   - httpcache_cache_size_bytes{layer} - Cache size
//   - httpcache_304_responses_total - Conditional request successes
//   - httpcache_conditional_requests_total - Conditional requests sent
//   - httpcache_invalidations_total - Entries removed by unsafe requests
//   - httpcache_cache_errors_total{operation} - Cache operation errors
package cache
