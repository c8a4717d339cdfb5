package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks pages served from Redis
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_cache_hits_total",
			Help: "Total number of portal pages served from cache",
		},
	)

	// CacheMisses tracks pages not found or expired in Redis
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_cache_misses_total",
			Help: "Total number of portal page cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to Redis
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_cache_stored_bytes_total",
			Help: "Total bytes of portal pages written to cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
