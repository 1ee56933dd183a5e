package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	promLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "loads_total",
			Help:      "Total engine load attempts by outcome",
		},
		[]string{"tier", "domain", "status"},
	)

	promLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "load_duration_seconds",
			Help:      "Duration of successful engine loads in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"tier", "domain"},
	)

	promCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "cache_hits_total",
			Help:      "Loads served from the engine cache",
		},
		[]string{"tier", "domain"},
	)

	promDemotions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "fallback_demotions_total",
			Help:      "Tier demotions performed by the fallback controller",
		},
		[]string{"from", "to"},
	)

	promBatchWindows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "batch_windows_total",
			Help:      "Batch scheduler windows executed",
		},
	)

	promDisposals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "disposals_total",
			Help:      "Engines disposed",
		},
	)

	promRecreations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "recreations_total",
			Help:      "Engines recreated",
		},
	)

	promProtectedLeases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "protected_leases",
			Help:      "Cache keys currently under a protection lease",
		},
	)

	promTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engined",
			Subsystem: "orchestrator",
			Name:      "completion_tokens_total",
			Help:      "Approximate tokens produced through orchestrated engines",
		},
		[]string{"tier", "domain"},
	)
)

func init() {
	prometheus.MustRegister(
		promLoads, promLoadDuration, promCacheHits, promDemotions,
		promBatchWindows, promDisposals, promRecreations,
		promProtectedLeases, promTokens,
	)
}
