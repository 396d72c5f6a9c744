package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks served-from-cache lookups.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_cache_hits_total",
			Help: "Total number of outcome cache hits",
		},
	)

	// CacheMisses tracks lookups that found nothing usable.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_cache_misses_total",
			Help: "Total number of outcome cache misses",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
