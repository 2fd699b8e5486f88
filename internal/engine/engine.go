package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/config"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/consumer"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/metrics"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/retry"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/stats"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/transform"
)

var (
	ErrQueueFull      = errors.New("sync queue full")
	ErrNotRunning     = errors.New("sync service not running")
	ErrAlreadyRunning = errors.New("sync service already running")
	ErrWrongTenant    = errors.New("event belongs to another tenant")
)

// Status is the result of a lifecycle or configuration call.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

func ok(msg string) Status { return Status{Success: true, Message: msg} }

func failed(msg string, err error) Status {
	return Status{Success: false, Message: msg, Error: err.Error(), Err: err}
}

// Configuration is the engine's current targets plus its statistics.
type Configuration struct {
	TargetsByModule map[string][]target.Target `json:"targets_by_module"`
	Statistics      stats.Stats                `json:"statistics"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the base logger; the engine adds tenant_id and component.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithRetryPolicy overrides the backoff derived from the engine config.
func WithRetryPolicy(p retry.Policy) Option { return func(e *Engine) { e.policy = p } }

// item is one unit of queued work. A nil target means a fresh event that
// still has to be matched; otherwise it is a retry of one (event, target) pair.
type item struct {
	ev      *event.Event
	target  *target.Key
	attempt int
}

// Engine dispatches one tenant's events to its sync targets. Exactly one
// worker goroutine processes the queue while the engine is running.
type Engine struct {
	tenantID    string
	registry    *target.Registry
	invoker     *consumer.Invoker
	transformer *transform.Transformer
	conf        config.EngineConf
	policy      retry.Policy
	logger      *slog.Logger
	stats       *stats.Collector
	queue       *workQueue[item]
	retries     *retry.Scheduler[item]
	workerAlive atomic.Bool

	mu      sync.Mutex
	running bool
	halt    context.CancelFunc // ends the worker loop and the retry scheduler
	abort   context.CancelFunc // cancels in-flight deliveries
	done    chan struct{}      // closed once both goroutines have exited
}

// New creates a stopped Engine for tenantID.
func New(tenantID string, reg *target.Registry, inv *consumer.Invoker, tr *transform.Transformer, conf config.EngineConf, opts ...Option) *Engine {
	conf = conf.WithDefaults()
	e := &Engine{
		tenantID:    tenantID,
		registry:    reg,
		invoker:     inv,
		transformer: tr,
		conf:        conf,
		policy:      retry.Policy{Base: time.Second, Max: conf.MaxBackoff()},
		logger:      slog.Default(),
		stats:       stats.NewCollector(),
		queue:       newWorkQueue[item](conf.QueueDepth),
		retries:     retry.NewScheduler[item](),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("tenant_id", tenantID, "component", "sync.engine")
	return e
}

// TenantID returns the tenant this engine serves.
func (e *Engine) TenantID() string { return e.tenantID }

// Enqueue places ev on the queue, waiting at most the configured enqueue
// timeout for room. It is accepted while the engine is stopped.
func (e *Engine) Enqueue(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return errors.New("enqueue: nil event")
	}
	if ev.TenantID != e.tenantID {
		return fmt.Errorf("enqueue %s: %w (%q)", ev.ID, ErrWrongTenant, ev.TenantID)
	}
	if err := e.queue.put(ctx, item{ev: ev}, e.conf.EnqueueTimeout()); err != nil {
		reason := metrics.DropQueueFull
		if !errors.Is(err, ErrQueueFull) {
			reason = metrics.DropCancelled
		}
		e.stats.RecordDropped()
		metrics.EventsDropped.WithLabelValues(e.tenantID, reason).Inc()
		e.logger.Warn("sync event dropped",
			"event_id", ev.ID,
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"reason", reason,
		)
		return fmt.Errorf("enqueue %s: %w", ev.ID, err)
	}
	metrics.EventsEnqueued.WithLabelValues(e.tenantID).Inc()
	metrics.QueueDepth.WithLabelValues(e.tenantID).Set(float64(e.queue.Len()))
	return nil
}

// Start launches the worker and the retry scheduler. Starting a running
// engine is a no-op that reports failure.
func (e *Engine) Start() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return failed("Sync service already running", ErrAlreadyRunning)
	}
	if e.done != nil {
		select {
		case <-e.done:
		default:
			return failed("Sync service is still shutting down", errors.New("previous worker has not exited"))
		}
	}

	loopCtx, halt := context.WithCancel(context.Background())
	deliverCtx, abort := context.WithCancel(context.Background())
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	e.workerAlive.Store(true)
	go func() {
		defer wg.Done()
		defer e.workerAlive.Store(false)
		e.run(loopCtx, deliverCtx)
	}()
	go func() {
		defer wg.Done()
		e.retries.Run(loopCtx, e.requeue)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	e.running, e.halt, e.abort, e.done = true, halt, abort, done
	e.logger.Info("sync service started", "queued", e.queue.Len(), "retries_pending", e.retries.Len())
	return ok("Sync service started")
}

// Stop signals the worker and waits up to the stop timeout for it to exit.
// Queued events and pending retries are kept for the next Start.
func (e *Engine) Stop() Status {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return failed("Sync service not running", ErrNotRunning)
	}
	e.running = false
	e.halt()
	abort, done := e.abort, e.done
	e.mu.Unlock()

	timeout := e.conf.StopTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		abort()
		e.logger.Info("sync service stopped", "queued", e.queue.Len(), "retries_pending", e.retries.Len())
		return ok("Sync service stopped")
	case <-timer.C:
		abort()
		e.logger.Warn("sync worker did not exit in time, in-flight delivery cancelled", "timeout", timeout)
		return ok(fmt.Sprintf("Sync service stopped; worker did not exit within %v", timeout))
	}
}

// Running reports whether the engine has been started and not stopped.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run(loopCtx, deliverCtx context.Context) {
	tick := time.NewTicker(e.conf.PollInterval())
	defer tick.Stop()
	for {
		// A stop request wins over a non-empty queue.
		if loopCtx.Err() != nil {
			return
		}
		select {
		case <-loopCtx.Done():
			return
		case it := <-e.queue.items():
			e.process(deliverCtx, it)
			metrics.QueueDepth.WithLabelValues(e.tenantID).Set(float64(e.queue.Len()))
		case <-tick.C:
			metrics.QueueDepth.WithLabelValues(e.tenantID).Set(float64(e.queue.Len()))
		}
	}
}

// process handles one work item and records its outcome. It never panics.
func (e *Engine) process(ctx context.Context, it item) {
	start := time.Now()
	success := false
	defer func() {
		if p := recover(); p != nil {
			success = false
			e.logger.Error("sync item processing panicked", "event_id", it.ev.ID, "panic", p)
		}
		d := time.Since(start)
		e.stats.RecordOutcome(success, d)
		metrics.EventsProcessed.WithLabelValues(e.tenantID).Inc()
		metrics.EventProcessingDuration.Observe(d.Seconds())
	}()

	if it.target == nil {
		success = e.dispatch(ctx, it.ev)
	} else {
		success = e.redeliver(ctx, it)
	}
}

// dispatch delivers a fresh event to every matching target. It succeeds when
// no target matched or at least one delivery went through.
func (e *Engine) dispatch(ctx context.Context, ev *event.Event) bool {
	targets := e.registry.TargetsFor(ev)
	if len(targets) == 0 {
		ev.MarkProcessed()
		e.logger.Debug("no sync targets matched", "event_id", ev.ID, "entity_type", ev.EntityType, "action", ev.Action)
		return true
	}
	delivered := false
	for _, t := range targets {
		if e.deliver(ctx, ev, t, 0) {
			delivered = true
		}
	}
	if delivered {
		ev.MarkProcessed()
	}
	return delivered
}

// redeliver retries a single pair. The target is looked up again but not
// re-filtered.
func (e *Engine) redeliver(ctx context.Context, it item) bool {
	t, found := e.registry.Lookup(*it.target)
	if !found {
		e.stats.RecordRetryDropped()
		metrics.EventsDropped.WithLabelValues(e.tenantID, metrics.DropNoTarget).Inc()
		e.logger.Info("sync retry dropped, target no longer registered",
			"event_id", it.ev.ID,
			"target", it.target.String(),
			"attempt", it.attempt,
		)
		return false
	}
	if !e.deliver(ctx, it.ev, t, it.attempt) {
		return false
	}
	it.ev.MarkProcessed()
	return true
}

// deliver transforms and invokes one (event, target) pair, scheduling a
// retry when the failure is retryable and budget remains.
func (e *Engine) deliver(ctx context.Context, ev *event.Event, t target.Target, attempt int) bool {
	data, degraded := e.transformer.Apply(ev, t)
	if degraded {
		e.stats.RecordTransformFailure()
	}

	key := t.Key()
	res := e.invoker.Invoke(ctx, t, data)
	if res.IsOK() {
		e.stats.RecordDelivery(true)
		metrics.Deliveries.WithLabelValues(e.tenantID, key.String(), metrics.StatusOK).Inc()
		return true
	}
	e.stats.RecordDelivery(false)

	log := e.logger.With(
		"event_id", ev.ID,
		"target", key.String(),
		"attempt", attempt,
		"max_retries", t.MaxRetries,
		"err", res.Err,
	)
	switch {
	case res.Outcome == consumer.Fatal:
		status := metrics.StatusFailed
		if errors.Is(res.Err, consumer.ErrUnknownHandler) {
			status = metrics.StatusUnresolved
		}
		metrics.Deliveries.WithLabelValues(e.tenantID, key.String(), status).Inc()
		log.Error("sync delivery failed permanently")

	case t.RetryOnFailure && attempt < t.MaxRetries:
		next := attempt + 1
		delay := e.policy.Delay(next)
		e.retries.Schedule(item{ev: ev, target: &key, attempt: next}, delay)
		ev.NoteRetry(next)
		e.stats.RecordRetry()
		metrics.Deliveries.WithLabelValues(e.tenantID, key.String(), metrics.StatusRetry).Inc()
		metrics.RetriesScheduled.WithLabelValues(e.tenantID).Inc()
		log.Warn("sync delivery failed, retry scheduled", "retry_in", delay)

	default:
		e.stats.RecordExhausted()
		metrics.Deliveries.WithLabelValues(e.tenantID, key.String(), metrics.StatusFailed).Inc()
		log.Error("sync delivery failed, giving up", "retry_on_failure", t.RetryOnFailure)
	}
	return false
}

// requeue moves a due retry back onto the queue without blocking.
func (e *Engine) requeue(it item) {
	if e.queue.tryPut(it) {
		return
	}
	e.stats.RecordRetryDropped()
	metrics.EventsDropped.WithLabelValues(e.tenantID, metrics.DropRetryFull).Inc()
	e.logger.Warn("sync retry dropped, queue full",
		"event_id", it.ev.ID,
		"target", it.target.String(),
		"attempt", it.attempt,
	)
}

// Stats returns the current statistics snapshot.
func (e *Engine) Stats() stats.Stats {
	return e.stats.Snapshot(stats.Live{
		QueueSize:      e.queue.Len(),
		Running:        e.Running(),
		WorkerAlive:    e.workerAlive.Load(),
		TargetCount:    e.registry.Len(),
		RetriesPending: e.retries.Len(),
	})
}

// Configuration returns the registered targets and current statistics.
func (e *Engine) Configuration() Configuration {
	return Configuration{
		TargetsByModule: e.registry.ByModule(),
		Statistics:      e.Stats(),
	}
}

// ConfigureTarget partially updates an existing target of module.
func (e *Engine) ConfigureTarget(module string, p target.Patch) Status {
	t, err := e.registry.Configure(module, p)
	if err != nil {
		return failed("Failed to configure sync target", err)
	}
	e.logger.Info("sync target configured", "target", t.Key().String())
	return ok(fmt.Sprintf("Sync target %s configured", t.Key()))
}

// RegisterTarget adds t under module, replacing a target with the same key.
func (e *Engine) RegisterTarget(module string, t target.Target) Status {
	if err := e.registry.Register(module, t); err != nil {
		return failed("Failed to register sync target", err)
	}
	t.Module = module
	e.logger.Info("sync target registered", "target", t.Key().String())
	return ok(fmt.Sprintf("Sync target %s registered", t.Key()))
}

// UnregisterTarget removes a target. Pending retries for it are dropped
// when they come due.
func (e *Engine) UnregisterTarget(module, service, method string) bool {
	removed := e.registry.Unregister(module, service, method)
	if removed {
		e.logger.Info("sync target unregistered", "target", target.Key{Module: module, Service: service, Method: method}.String())
	}
	return removed
}

// ReplaceTargets swaps the whole target set, used on config reload.
func (e *Engine) ReplaceTargets(byModule map[string][]target.Target) {
	e.registry.Replace(byModule)
	e.logger.Info("sync targets replaced", "target_count", e.registry.Len())
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.queue.Cap() == 0 {
		return 0
	}
	return float64(e.queue.Len()) / float64(e.queue.Cap())
}
