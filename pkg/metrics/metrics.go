// Package metrics exposes the Prometheus registry used by the caching
// client. Metrics are defined with promauto in the packages that record
// them (cache, transport, client) so that those packages stay free of
// import cycles; this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all promauto metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - httpcache_cache_hits_total{layer} (Counter): Store hits by backend (memory, redis, sqlite)
//   - httpcache_cache_misses_total (Counter): Store misses
//   - httpcache_cache_size_bytes{layer} (Gauge): Approximate stored bytes by backend
//   - httpcache_304_responses_total (Counter): Revalidations answered with 304
//   - httpcache_conditional_requests_total (Counter): Conditional requests sent
//   - httpcache_invalidations_total (Counter): Entries removed after unsafe requests
//   - httpcache_cache_errors_total{operation} (Counter): Store operation errors
//
// Transport Metrics (pkg/transport):
//   - httpcache_transport_retries_total (Counter): Retries after connection failures
//   - httpcache_transport_retry_backoff_seconds (Histogram): Backoff before a retry
//   - httpcache_transport_retry_exhausted_total (Counter): Requests that exhausted retries
//
// Request Metrics (pkg/client):
//   - httpcache_requests_total{method, cache_status} (Counter): Requests by outcome
//   - httpcache_request_duration_seconds{cache_status} (Histogram): Execute latency
//   - httpcache_transport_errors_total{phase} (Counter): Transport failures (request, revalidation)
//
// Example Prometheus Queries:
//
//   # Hit Ratio
//   sum(rate(httpcache_requests_total{cache_status="hit"}[5m])) /
//   sum(rate(httpcache_requests_total[5m]))
//
//   # Revalidation Success Rate
//   rate(httpcache_304_responses_total[5m]) / rate(httpcache_conditional_requests_total[5m])
//
//   # Backend Degradation
//   rate(httpcache_requests_total{cache_status="bypass"}[5m])
//
//   # P95 Latency of Cache Hits
//   histogram_quantile(0.95, rate(httpcache_request_duration_seconds_bucket{cache_status="hit"}[5m]))
