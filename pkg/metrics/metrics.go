// Package metrics provides Prometheus instrumentation for the progression
// pipeline. A custom registry keeps the scrape surface to our own series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skilltrend"

var registry = prometheus.NewRegistry()

var (
	// Snapshot producer
	SnapshotsCaptured = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_captured_total",
		Help:      "Raw snapshot rows written by the producer.",
	})
	SnapshotErrors = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_errors_total",
		Help:      "Per-player capture failures (logged and skipped).",
	})
	OnlinePlayers = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "online_players",
		Help:      "Players currently registered as online.",
	})

	// Compaction pipeline
	RowsPromoted = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compaction_rows_promoted_total",
		Help:      "Summary rows upserted, by stage.",
	}, []string{"stage"})
	RowsDeleted = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compaction_rows_deleted_total",
		Help:      "Source rows deleted after promotion or expiry, by stage.",
	}, []string{"stage"})
	CompactionGroupErrors = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compaction_group_errors_total",
		Help:      "Per-group failures skipped during compaction.",
	})
	CompactionRuns = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compaction_runs_total",
		Help:      "Pipeline invocations by result.",
	}, []string{"result"})
	CompactionDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "compaction_duration_seconds",
		Help:      "Wall time of one full pipeline run.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// Trend queries
	TrendQueries = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trend_queries_total",
		Help:      "Trend queries by result status.",
	}, []string{"status"})
	TrendQueryDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trend_query_duration_seconds",
		Help:      "Trend query latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// Level-up events
	LevelUpEvents = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "levelup_events_total",
		Help:      "Level-up events recorded.",
	})
)

// Handler returns the /metrics scrape handler for the custom registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
