package transform

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

// Envelope keys added to every delivery.
const (
	KeyTenantID      = "tenant_id"
	KeySyncTimestamp = "sync_timestamp"
	KeySourceModule  = "source_module"
	KeySourceEntity  = "source_entity"
	KeySourceAction  = "source_action"
)

// Shaper adds module-specific fields to data. It may mutate and return data.
type Shaper func(ev *event.Event, data map[string]any) (map[string]any, error)

// Option configures a Transformer.
type Option func(*Transformer)

// WithClock overrides the sync_timestamp source.
func WithClock(now func() time.Time) Option { return func(t *Transformer) { t.now = now } }

// WithLogger sets the logger used for shaping failures.
func WithLogger(l *slog.Logger) Option { return func(t *Transformer) { t.logger = l } }

// WithShaper registers or replaces the shaper for a target module.
func WithShaper(module string, s Shaper) Option {
	return func(t *Transformer) { t.shapers[module] = s }
}

// Transformer builds the data handed to a target's handler.
type Transformer struct {
	shapers map[string]Shaper
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Transformer with the built-in crm, inventory, ecommerce and
// workflow shapers.
func New(opts ...Option) *Transformer {
	t := &Transformer{
		shapers: map[string]Shaper{
			"crm":       shapeCRM,
			"inventory": shapeInventory,
			"ecommerce": shapeEcommerce,
			"workflow":  shapeWorkflow,
		},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transform never fails: when shaping errors or panics, the envelope-augmented
// payload is returned instead.
func (t *Transformer) Transform(ev *event.Event, tg target.Target) map[string]any {
	data, _ := t.Apply(ev, tg)
	return data
}

// Apply is Transform that also reports whether shaping failed and the
// fallback payload was returned.
func (t *Transformer) Apply(ev *event.Event, tg target.Target) (data map[string]any, degraded bool) {
	base := t.envelope(ev)
	if !tg.Transform {
		return base, false
	}
	shape, ok := t.shapers[tg.Module]
	if !ok {
		return base, false
	}
	shaped, err := t.safeShape(shape, ev, copyMap(base))
	if err != nil {
		t.logger.Warn("transform failed, delivering untransformed data",
			"event_id", ev.ID,
			"target", tg.Key().String(),
			"err", err,
		)
		return base, true
	}
	return shaped, false
}

func (t *Transformer) envelope(ev *event.Event) map[string]any {
	data := ev.Payload.Map()
	data[KeyTenantID] = ev.TenantID
	data[KeySyncTimestamp] = t.now().UTC().Format(time.RFC3339Nano)
	data[KeySourceModule] = ev.Module
	data[KeySourceEntity] = ev.EntityType
	data[KeySourceAction] = string(ev.Action)
	return data
}

func (t *Transformer) safeShape(s Shaper, ev *event.Event, data map[string]any) (out map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("shaper panicked: %v", p)
		}
	}()
	out, err = s(ev, data)
	if err == nil && out == nil {
		err = fmt.Errorf("shaper returned no data")
	}
	return out, err
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
