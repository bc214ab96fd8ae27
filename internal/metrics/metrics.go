package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachesync_events_enqueued_total",
		Help: "Total number of events placed on the ingestion queue.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachesync_events_dropped_total",
		Help: "Total number of events rejected due to a full ingestion queue.",
	})

	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachesync_events_dispatched_total",
		Help: "Total number of events dispatched, labelled by event kind and outcome.",
	}, []string{"kind", "outcome"})

	LinkOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachesync_link_outcomes_total",
		Help: "Account reference maintenance results, labelled by item kind and outcome.",
	}, []string{"item_kind", "outcome"})

	ReconciliationsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachesync_reconciliations_enqueued_total",
		Help: "Account ids published to the reconciliation queue, labelled by status.",
	}, []string{"status"})

	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachesync_store_operations_total",
		Help: "Record store operations, labelled by table, operation and status.",
	}, []string{"table", "op", "status"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cachesync_dispatch_duration_ms",
		Help:    "Per-event dispatch latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cachesync_queue_utilization_ratio",
		Help: "Current ingestion queue utilization (0 to 1).",
	})
)
