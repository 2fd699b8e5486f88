// Package stats aggregates sync throughput and failure counters.
package stats

import (
	"sync"
	"time"
)

// Stats is a point-in-time view of an engine.
type Stats struct {
	EventsProcessed     int64      `json:"events_processed"`
	EventsFailed        int64      `json:"events_failed"`
	SuccessRate         float64    `json:"success_rate"`
	AvgProcessingTime   float64    `json:"avg_processing_time"`
	LastSyncTime        *time.Time `json:"last_sync_time"`
	QueueSize           int        `json:"queue_size"`
	ServiceRunning      bool       `json:"service_running"`
	ThreadActive        bool       `json:"thread_active"`
	TargetCount         int        `json:"target_count"`
	DeliveriesAttempted int64      `json:"deliveries_attempted"`
	DeliveriesFailed    int64      `json:"deliveries_failed"`
	RetriesScheduled    int64      `json:"retries_scheduled"`
	RetriesExhausted    int64      `json:"retries_exhausted"`
	RetriesDropped      int64      `json:"retries_dropped"`
	RetriesPending      int        `json:"retries_pending"`
	EventsDropped       int64      `json:"events_dropped"`
	TransformFailures   int64      `json:"transform_failures"`
}

// Live is the engine state that the collector does not own.
type Live struct {
	QueueSize      int
	Running        bool
	WorkerAlive    bool
	TargetCount    int
	RetriesPending int
}

// Collector is safe for concurrent use. Every method holds the lock only
// long enough to update a few counters.
type Collector struct {
	mu                sync.Mutex
	processed         int64
	failed            int64
	avg               float64 // seconds
	lastSync          time.Time
	attempted         int64
	deliveryFailed    int64
	retries           int64
	exhausted         int64
	retriesDropped    int64
	dropped           int64
	transformFailures int64
	now               func() time.Time
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// RecordOutcome counts one processed work item and folds d into the running average.
func (c *Collector) RecordOutcome(success bool, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed++
	if !success {
		c.failed++
	}
	c.avg += (d.Seconds() - c.avg) / float64(c.processed)
	c.lastSync = c.now()
}

// RecordDelivery counts one handler invocation.
func (c *Collector) RecordDelivery(ok bool) {
	c.mu.Lock()
	c.attempted++
	if !ok {
		c.deliveryFailed++
	}
	c.mu.Unlock()
}

func (c *Collector) RecordRetry() { c.add(&c.retries) }

func (c *Collector) RecordExhausted() { c.add(&c.exhausted) }

func (c *Collector) RecordRetryDropped() { c.add(&c.retriesDropped) }

func (c *Collector) RecordDropped() { c.add(&c.dropped) }

func (c *Collector) RecordTransformFailure() { c.add(&c.transformFailures) }

func (c *Collector) add(n *int64) {
	c.mu.Lock()
	*n++
	c.mu.Unlock()
}

// Snapshot combines the counters with live engine state.
func (c *Collector) Snapshot(live Live) Stats {
	c.mu.Lock()
	s := Stats{
		EventsProcessed:     c.processed,
		EventsFailed:        c.failed,
		AvgProcessingTime:   c.avg,
		DeliveriesAttempted: c.attempted,
		DeliveriesFailed:    c.deliveryFailed,
		RetriesScheduled:    c.retries,
		RetriesExhausted:    c.exhausted,
		RetriesDropped:      c.retriesDropped,
		EventsDropped:       c.dropped,
		TransformFailures:   c.transformFailures,
	}
	if !c.lastSync.IsZero() {
		ts := c.lastSync
		s.LastSyncTime = &ts
	}
	c.mu.Unlock()

	if s.EventsProcessed > 0 {
		s.SuccessRate = float64(s.EventsProcessed-s.EventsFailed) / float64(s.EventsProcessed) * 100
	}
	s.QueueSize = live.QueueSize
	s.ServiceRunning = live.Running
	s.ThreadActive = live.WorkerAlive
	s.TargetCount = live.TargetCount
	s.RetriesPending = live.RetriesPending
	return s
}
