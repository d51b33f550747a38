package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by store layer (memory, redis, sqlite)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpcache_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "httpcache_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheSize tracks bytes held by the memory and sqlite layers
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "httpcache_cache_size_bytes",
			Help: "Approximate size of cached entries in bytes",
		},
		[]string{"layer"},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "httpcache_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// ConditionalRequestsSent tracks revalidation requests
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "httpcache_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// Invalidations tracks entries removed after unsafe requests
	Invalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "httpcache_invalidations_total",
			Help: "Total number of cache entries invalidated by unsafe requests",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpcache_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
