package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits per namespace and variant
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace", "variant"},
	)

	// CacheMisses tracks cache misses, expired entries included
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace", "variant"},
	)

	// CacheEvictions tracks LRU evictions
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_cache_evictions_total",
			Help: "Total number of entries evicted at capacity",
		},
		[]string{"namespace", "variant"},
	)

	// CacheEntries tracks the current number of cached entries
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jaspel_cache_entries",
			Help: "Current number of entries held by the cache",
		},
		[]string{"namespace", "variant"},
	)

	// FetchRequestsTotal tracks candidate endpoint calls by outcome
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_fetch_requests_total",
			Help: "Total number of candidate endpoint requests",
		},
		[]string{"variant", "endpoint", "outcome"},
	)

	// FetchLatency tracks candidate endpoint latency
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jaspel_fetch_latency_seconds",
			Help:    "Candidate endpoint latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant", "endpoint"},
	)

	// FetchShared tracks callers that joined an existing flight
	FetchShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_fetch_shared_total",
			Help: "Total number of fetches served by an in-flight request",
		},
		[]string{"variant"},
	)

	// ClassifiedErrorsTotal tracks classified failures
	ClassifiedErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"category", "severity"},
	)

	// NormalizedRecords tracks records kept or skipped by normalization
	NormalizedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_normalized_records_total",
			Help: "Total number of records seen by the normalizer",
		},
		[]string{"variant", "shape", "result"},
	)

	// QualityScore tracks the quality score of the last normalized payload
	QualityScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jaspel_quality_score",
			Help: "Quality score (0-100) of the last normalized payload",
		},
		[]string{"variant"},
	)

	// LiveEventsTotal tracks push events handled by the live coordinator
	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_live_events_total",
			Help: "Total number of push events received",
		},
		[]string{"variant", "event"},
	)

	// LiveReconnectsTotal tracks reconnect attempts
	LiveReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_live_reconnects_total",
			Help: "Total number of push reconnect attempts",
		},
		[]string{"variant"},
	)

	// RefreshRunsTotal tracks auto-refresh runs by outcome
	RefreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaspel_refresh_runs_total",
			Help: "Total number of auto-refresh runs",
		},
		[]string{"variant", "outcome"},
	)

	// RefreshIntervalSeconds tracks the current auto-refresh interval
	RefreshIntervalSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jaspel_refresh_interval_seconds",
			Help: "Current auto-refresh interval in seconds",
		},
		[]string{"variant"},
	)

	// EndpointHealthy tracks endpoint health as seen by the monitor (1 healthy, 0 not)
	EndpointHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jaspel_endpoint_healthy",
			Help: "Endpoint health as reported by the endpoint monitor",
		},
		[]string{"endpoint"},
	)
)
