// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsIngested    prometheus.Counter
	EventsDuplicate   prometheus.Counter
	PricePointsStored prometheus.Counter
	FetchErrors       *prometheus.CounterVec

	// Engine metrics
	RecomputesTotal   prometheus.Counter
	RecomputeDuration prometheus.Histogram
	MemoHits          prometheus.Counter
	SkippedEvents     prometheus.Gauge

	// Readiness and staleness
	Ready               prometheus.Gauge
	SnapshotAgeSeconds  prometheus.Gauge
	SnapshotRefreshes   prometheus.Counter
	StaleSnapshotEvents prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "blend_pnl_lab"
	}

	return &Metrics{
		EventsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_ingested_total",
			Help:      "Total number of ledger events fetched and stored",
		}),
		EventsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_duplicate_total",
			Help:      "Total number of already-known events skipped on insert",
		}),
		PricePointsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "price_points_stored_total",
			Help:      "Total number of daily price points stored",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_errors_total",
			Help:      "Total number of indexer fetch failures by kind",
		}, []string{"kind"}),

		RecomputesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recomputes_total",
			Help:      "Total number of full P&L recomputations",
		}),
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of full P&L recomputations",
			Buckets:   prometheus.DefBuckets,
		}),
		MemoHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "memo_hits_total",
			Help:      "Total number of recomputations skipped because inputs were unchanged",
		}),
		SkippedEvents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "skipped_events",
			Help:      "Events excluded from accounting in the latest pass",
		}),

		Ready: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "ready",
			Help:      "1 when both the event log and the live snapshot have loaded",
		}),
		SnapshotAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "snapshot_age_seconds",
			Help:      "Age of the live position snapshot",
		}),
		SnapshotRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "snapshot_refreshes_total",
			Help:      "Total number of snapshot refreshes",
		}),
		StaleSnapshotEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "stale_snapshot_events_total",
			Help:      "Events observed while the snapshot exceeded the staleness bound",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
