package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TransactionsScored counts scored transactions by resulting risk level.
var TransactionsScored = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sentinel_transactions_scored_total",
		Help: "Total number of transactions scored, by risk level",
	},
	[]string{"level"},
)

// ScoringLatency records latency distribution for the scoring path.
var ScoringLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "sentinel_scoring_latency_seconds",
		Help:    "Latency in seconds to score an individual transaction",
		Buckets: prometheus.DefBuckets,
	},
)

// PatternsDetected counts detected fraud patterns by pattern type.
var PatternsDetected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sentinel_patterns_detected_total",
		Help: "Total number of fraud patterns detected, by type",
	},
	[]string{"type"},
)

// ProfileUpdateFailures counts best-effort profile updates that failed
// after scoring.
var ProfileUpdateFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "sentinel_profile_update_failures_total",
		Help: "Total number of post-scoring profile updates that failed",
	},
)

// Profile cache metrics
var (
	ProfileCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_profile_cache_hits_total",
			Help: "Number of profile reads served from the cache",
		},
	)

	ProfileCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_profile_cache_misses_total",
			Help: "Number of profile reads that fell through to the durable store",
		},
	)
)

func init() {
	prometheus.MustRegister(TransactionsScored, ScoringLatency, PatternsDetected)
	prometheus.MustRegister(ProfileUpdateFailures, ProfileCacheHits, ProfileCacheMisses)
}
