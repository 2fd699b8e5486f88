// Package producer turns committed entity changes into sync events.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
)

// SourceModule is the module name stamped on events by default.
const SourceModule = "finance"

// Ref identifies an entity within a tenant.
type Ref struct {
	TenantID   string
	EntityType string
	EntityID   string
}

// Entity is a committed record that can be synced.
type Entity interface {
	SyncRef() Ref
	SyncPayload() event.Payload
}

// Gate is implemented by entities that only sync in some states.
type Gate interface {
	ShouldSync() bool
}

// DeletePayloader is implemented by entities whose delete event carries a
// reduced payload.
type DeletePayloader interface {
	DeletePayload() event.Payload
}

// Enqueuer accepts events for dispatch.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev *event.Event) error
}

// Lookup loads an entity for a manual sync.
type Lookup interface {
	Lookup(ctx context.Context, tenantID, entityType, entityID string) (Entity, error)
}

// ErrNoLookup is returned by ManualSync when the observer has no Lookup.
var ErrNoLookup = errors.New("manual sync: no entity lookup configured")

// ManualResult reports the outcome of ManualSync.
type ManualResult struct {
	Success bool   `json:"success"`
	EventID string `json:"event_id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// Option configures an Observer.
type Option func(*Observer)

// WithModule overrides SourceModule.
func WithModule(m string) Option { return func(o *Observer) { o.module = m } }

// WithPriority replaces DefaultPriority.
func WithPriority(fn PriorityFunc) Option { return func(o *Observer) { o.priority = fn } }

// WithLookup enables ManualSync.
func WithLookup(l Lookup) Option { return func(o *Observer) { o.lookup = l } }

func WithLogger(l *slog.Logger) Option { return func(o *Observer) { o.logger = l } }

// Observer is bound to one tenant. Its hooks never fail the caller: an
// enqueue error is logged and dropped.
type Observer struct {
	tenantID string
	module   string
	queue    Enqueuer
	lookup   Lookup
	priority PriorityFunc
	logger   *slog.Logger
}

// NewObserver creates an Observer that feeds q.
func NewObserver(tenantID string, q Enqueuer, opts ...Option) *Observer {
	o := &Observer{
		tenantID: tenantID,
		module:   SourceModule,
		queue:    q,
		priority: DefaultPriority,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("tenant_id", tenantID, "component", "sync.producer")
	return o
}

// OnEntitySaved emits CREATE when created is set and UPDATE otherwise.
func (o *Observer) OnEntitySaved(ctx context.Context, e Entity, created bool) {
	if g, ok := e.(Gate); ok && !g.ShouldSync() {
		return
	}
	action := event.ActionUpdate
	if created {
		action = event.ActionCreate
	}
	o.emit(ctx, e, action, e.SyncPayload())
}

// OnEntityDeleted emits DELETE.
func (o *Observer) OnEntityDeleted(ctx context.Context, e Entity) {
	payload := e.SyncPayload()
	if d, ok := e.(DeletePayloader); ok {
		payload = d.DeletePayload()
	}
	o.emit(ctx, e, event.ActionDelete, payload)
}

func (o *Observer) emit(ctx context.Context, e Entity, action event.Action, payload event.Payload) {
	ref := e.SyncRef()
	if ref.TenantID != o.tenantID {
		return
	}
	ev := o.newEvent(ref, action, payload, o.priority(ref.EntityType, action))
	if err := o.queue.Enqueue(ctx, ev); err != nil {
		o.logger.Warn("sync event not queued",
			"event_id", ev.ID,
			"entity_type", ref.EntityType,
			"entity_id", ref.EntityID,
			"action", action,
			"err", err,
		)
	}
}

// ManualSync loads an entity and queues it at ManualPriority regardless of
// its sync gate.
func (o *Observer) ManualSync(ctx context.Context, entityType, entityID string, action event.Action) ManualResult {
	if o.lookup == nil {
		return manualFailure(ErrNoLookup)
	}
	if action == "" {
		action = event.ActionUpdate
	}
	e, err := o.lookup.Lookup(ctx, o.tenantID, entityType, entityID)
	if err != nil {
		return manualFailure(fmt.Errorf("entity not found: %s#%s: %w", entityType, entityID, err))
	}
	payload := e.SyncPayload()
	if d, ok := e.(DeletePayloader); ok && action == event.ActionDelete {
		payload = d.DeletePayload()
	}
	ev := o.newEvent(e.SyncRef(), action, payload, ManualPriority)
	if err := o.queue.Enqueue(ctx, ev); err != nil {
		o.logger.Warn("manual sync not queued", "event_id", ev.ID, "err", err)
		return manualFailure(fmt.Errorf("failed to queue sync event: %w", err))
	}
	o.logger.Info("manual sync queued", "event_id", ev.ID, "entity_type", entityType, "entity_id", entityID)
	return ManualResult{
		Success: true,
		EventID: ev.ID,
		Message: fmt.Sprintf("Manual sync queued for %s#%s", entityType, entityID),
	}
}

func manualFailure(err error) ManualResult {
	return ManualResult{Success: false, Error: err.Error(), Err: err}
}

func (o *Observer) newEvent(ref Ref, action event.Action, payload event.Payload, priority int) *event.Event {
	return event.New(event.Change{
		TenantID:   ref.TenantID,
		Module:     o.module,
		EntityType: ref.EntityType,
		EntityID:   ref.EntityID,
		Action:     action,
		Payload:    payload,
		Priority:   priority,
	})
}
