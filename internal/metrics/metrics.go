package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_events_enqueued_total",
		Help: "Total number of events placed on a tenant's sync queue.",
	}, []string{"tenant"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_events_dropped_total",
		Help: "Total number of events or retries dropped, labelled by reason.",
	}, []string{"tenant", "reason"})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_events_processed_total",
		Help: "Total number of queue items processed by a tenant's dispatcher.",
	}, []string{"tenant"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_deliveries_total",
		Help: "Total number of handler deliveries, labelled by target and status.",
	}, []string{"tenant", "target", "status"})

	RetriesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_retries_scheduled_total",
		Help: "Total number of delayed re-deliveries scheduled.",
	}, []string{"tenant"})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_event_processing_seconds",
		Help:    "Time spent processing one queue item, across all its targets.",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Current number of items waiting on a tenant's sync queue.",
	}, []string{"tenant"})
)

// Delivery status labels.
const (
	StatusOK         = "ok"
	StatusRetry      = "retry"
	StatusFailed     = "failed"
	StatusUnresolved = "unresolved"
)

// Drop reasons.
const (
	DropQueueFull = "queue_full"
	DropRetryFull = "retry_queue_full"
	DropCancelled = "cancelled"
	DropNoTarget  = "target_removed"
)
