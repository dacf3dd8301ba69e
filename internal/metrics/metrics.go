package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RawRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "honeytrail_raw_records_total",
		Help: "Raw sensor records read from archives or queues",
	})

	NormalizedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytrail_normalized_events_total",
			Help: "Events normalized per sensor",
		},
		[]string{"sensor"},
	)

	DroppedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytrail_dropped_records_total",
			Help: "Raw records skipped during normalization",
		},
		[]string{"reason"},
	)

	SessionsAssembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytrail_sessions_assembled_total",
			Help: "Sessions built per sensor",
		},
		[]string{"sensor"},
	)

	StageSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytrail_stage_sessions_total",
			Help: "Per-session stage outcomes",
		},
		[]string{"stage", "outcome"},
	)

	ExternalCallSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "honeytrail_external_call_seconds",
			Help:    "Latency of narrative and similarity calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"service"},
	)

	RiskScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "honeytrail_risk_scores",
		Help:    "Distribution of analyzed session risk scores",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	SimilarityCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytrail_similarity_cache_total",
			Help: "Similarity cache lookups",
		},
		[]string{"result"},
	)
)
