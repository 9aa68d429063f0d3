package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks completed resolutions by outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_resolutions_total",
			Help: "Total number of completed resolutions",
		},
		[]string{"outcome"},
	)

	// ResolveLatency tracks end-to-end resolution latency
	ResolveLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolver_resolve_latency_seconds",
			Help:    "End-to-end resolution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CacheHitsTotal tracks cache hits per tier
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"},
	)

	// CacheMissesTotal tracks full hierarchy misses
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cache_misses_total",
			Help: "Total number of cache misses across all tiers",
		},
	)

	// CacheTierErrorsTotal tracks swallowed per-tier failures
	CacheTierErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_cache_tier_errors_total",
			Help: "Total number of tier failures treated as misses",
		},
		[]string{"tier", "op"},
	)

	// CacheEvictionsTotal tracks entries evicted by the memory sweep
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cache_evictions_total",
			Help: "Total number of entries evicted by the sweep",
		},
	)

	// ExtractionAttemptsTotal tracks extraction attempts per source and outcome
	ExtractionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_extraction_attempts_total",
			Help: "Total number of extraction attempts",
		},
		[]string{"source", "outcome"},
	)

	// SourcesInCooldown tracks how many sources are currently circuit-broken
	SourcesInCooldown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resolver_sources_in_cooldown",
			Help: "Number of sources currently in cooldown",
		},
	)
)
