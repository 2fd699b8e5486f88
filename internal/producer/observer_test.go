package producer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/producer"
)

type queue struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (q *queue) Enqueue(_ context.Context, ev *event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, ev)
	return nil
}

type record struct {
	ref     producer.Ref
	payload event.Payload
	gate    *bool
}

func (r record) SyncRef() producer.Ref        { return r.ref }
func (r record) SyncPayload() event.Payload   { return r.payload }
func (r record) DeletePayload() event.Payload { return event.Payload{event.F("deleted_id", r.ref.EntityID)} }

type gated struct {
	record
	approved bool
}

func (g gated) ShouldSync() bool { return g.approved }

type lookup map[string]producer.Entity

var errMissing = errors.New("missing")

func (l lookup) Lookup(_ context.Context, tenantID, entityType, entityID string) (producer.Entity, error) {
	e, ok := l[tenantID+"/"+entityType+"/"+entityID]
	if !ok {
		return nil, errMissing
	}
	return e, nil
}

func invoice(tenant, id string) record {
	return record{
		ref:     producer.Ref{TenantID: tenant, EntityType: "invoice", EntityID: id},
		payload: event.Payload{event.F("invoice_id", id), event.F("total_amount", 99.5)},
	}
}

func TestDefaultPriority(t *testing.T) {
	cases := []struct {
		entity string
		action event.Action
		want   int
	}{
		{"invoice", event.ActionCreate, 7},
		{"invoice", event.ActionUpdate, 5},
		{"invoice", event.ActionDelete, 8},
		{"payment", event.ActionCreate, 6},
		{"payment", event.ActionUpdate, 6},
		{"journal_entry", event.ActionUpdate, 4},
		{"credit_note", event.ActionCreate, event.PriorityDefault},
		{"credit_note", event.ActionDelete, 8},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, producer.DefaultPriority(tc.entity, tc.action), "%s %s", tc.entity, tc.action)
	}
}

func TestOnEntitySaved(t *testing.T) {
	q := &queue{}
	o := producer.NewObserver("acme", q)

	o.OnEntitySaved(context.Background(), invoice("acme", "10"), true)
	o.OnEntitySaved(context.Background(), invoice("acme", "10"), false)

	require.Len(t, q.events, 2)
	created, updated := q.events[0], q.events[1]
	assert.Equal(t, event.ActionCreate, created.Action)
	assert.Equal(t, 7, created.Priority)
	assert.Equal(t, event.ActionUpdate, updated.Action)
	assert.Equal(t, 5, updated.Priority)
	assert.Equal(t, producer.SourceModule, created.Module)
	assert.Equal(t, "10", created.EntityID)
	v, ok := created.Payload.Get("total_amount")
	require.True(t, ok)
	assert.Equal(t, 99.5, v)
	assert.NotEqual(t, created.ID, updated.ID)
}

func TestOnEntitySaved_IgnoresOtherTenants(t *testing.T) {
	q := &queue{}
	o := producer.NewObserver("acme", q)
	o.OnEntitySaved(context.Background(), invoice("globex", "10"), true)
	o.OnEntityDeleted(context.Background(), invoice("globex", "10"))
	assert.Empty(t, q.events)
}

func TestOnEntitySaved_RespectsGate(t *testing.T) {
	q := &queue{}
	o := producer.NewObserver("acme", q)
	draft := gated{record: record{ref: producer.Ref{TenantID: "acme", EntityType: "journal_entry", EntityID: "1"}}}
	approved := draft
	approved.approved = true

	o.OnEntitySaved(context.Background(), draft, true)
	o.OnEntitySaved(context.Background(), approved, false)

	require.Len(t, q.events, 1)
	assert.Equal(t, 4, q.events[0].Priority)
}

func TestOnEntityDeleted_UsesDeletePayload(t *testing.T) {
	q := &queue{}
	o := producer.NewObserver("acme", q)
	o.OnEntityDeleted(context.Background(), invoice("acme", "10"))

	require.Len(t, q.events, 1)
	ev := q.events[0]
	assert.Equal(t, event.ActionDelete, ev.Action)
	assert.Equal(t, 8, ev.Priority)
	assert.Equal(t, []string{"deleted_id"}, ev.Payload.Keys())
}

func TestOnEntitySaved_SwallowsEnqueueErrors(t *testing.T) {
	q := &queue{err: errors.New("sync queue full")}
	o := producer.NewObserver("acme", q)
	assert.NotPanics(t, func() { o.OnEntitySaved(context.Background(), invoice("acme", "1"), true) })
}

func TestManualSync(t *testing.T) {
	q := &queue{}
	l := lookup{"acme/invoice/10": invoice("acme", "10")}
	o := producer.NewObserver("acme", q, producer.WithLookup(l))

	res := o.ManualSync(context.Background(), "invoice", "10", event.ActionUpdate)
	require.True(t, res.Success, res.Error)
	require.Len(t, q.events, 1)
	assert.Equal(t, q.events[0].ID, res.EventID)
	assert.Equal(t, producer.ManualPriority, q.events[0].Priority)
	assert.Equal(t, "Manual sync queued for invoice#10", res.Message)

	res = o.ManualSync(context.Background(), "invoice", "404", event.ActionUpdate)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, errMissing)
	assert.Contains(t, res.Error, "invoice#404")

	q.err = errors.New("sync queue full")
	res = o.ManualSync(context.Background(), "invoice", "10", "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "failed to queue")
}

func TestManualSync_WithoutLookup(t *testing.T) {
	o := producer.NewObserver("acme", &queue{})
	res := o.ManualSync(context.Background(), "invoice", "10", event.ActionUpdate)
	assert.ErrorIs(t, res.Err, producer.ErrNoLookup)
}

func TestWithPriority(t *testing.T) {
	q := &queue{}
	o := producer.NewObserver("acme", q, producer.WithPriority(func(string, event.Action) int { return 42 }))
	o.OnEntitySaved(context.Background(), invoice("acme", "1"), true)
	require.Len(t, q.events, 1)
	assert.Equal(t, event.PriorityMax, q.events[0].Priority)
}
