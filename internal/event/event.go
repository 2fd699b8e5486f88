package event

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of state transition observed on an entity.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q (want CREATE, UPDATE or DELETE)", s)
}

// Priority bounds. Higher is more urgent.
const (
	PriorityMin     = 1
	PriorityDefault = 5
	PriorityMax     = 10
)

// Event describes one change to one entity.
// Fields must not be modified once the event has been enqueued; only the
// advisory counters behind RetryCount and Processed change afterwards.
type Event struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Module     string    `json:"module"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     Action    `json:"action"`
	Payload    Payload   `json:"payload"`
	Timestamp  time.Time `json:"timestamp"`
	Priority   int       `json:"priority"`

	retryCount atomic.Int32
	processed  atomic.Bool
}

// Change carries the producer-supplied parts of a new Event.
type Change struct {
	TenantID   string
	Module     string
	EntityType string
	EntityID   string
	Action     Action
	Payload    Payload
	Priority   int
}

// New stamps a Change with an ID and creation time.
func New(c Change) *Event {
	return &Event{
		ID:         uuid.New().String(),
		TenantID:   c.TenantID,
		Module:     c.Module,
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Action:     c.Action,
		Payload:    c.Payload.Clone(),
		Timestamp:  time.Now(),
		Priority:   ClampPriority(c.Priority),
	}
}

// ClampPriority maps p into [PriorityMin, PriorityMax]; zero means default.
func ClampPriority(p int) int {
	switch {
	case p == 0:
		return PriorityDefault
	case p < PriorityMin:
		return PriorityMin
	case p > PriorityMax:
		return PriorityMax
	}
	return p
}

// RetryCount is the highest retry attempt recorded for any target.
func (e *Event) RetryCount() int { return int(e.retryCount.Load()) }

// NoteRetry records that some (event, target) pair reached attempt n.
func (e *Event) NoteRetry(n int) {
	for {
		cur := e.retryCount.Load()
		if int32(n) <= cur || e.retryCount.CompareAndSwap(cur, int32(n)) {
			return
		}
	}
}

// Processed reports whether the event had no work or reached at least one target.
func (e *Event) Processed() bool { return e.processed.Load() }

// MarkProcessed sets the processed flag.
func (e *Event) MarkProcessed() { e.processed.Store(true) }

// Attr returns a top-level attribute by its snake_case name.
func (e *Event) Attr(name string) (any, bool) {
	switch name {
	case "id":
		return e.ID, true
	case "tenant_id":
		return e.TenantID, true
	case "module":
		return e.Module, true
	case "entity_type":
		return e.EntityType, true
	case "entity_id":
		return e.EntityID, true
	case "action":
		return string(e.Action), true
	case "priority":
		return e.Priority, true
	}
	return nil, false
}

// Lookup resolves name as a top-level attribute first, then as a payload key.
func (e *Event) Lookup(name string) (any, bool) {
	if v, ok := e.Attr(name); ok {
		return v, true
	}
	return e.Payload.Get(name)
}
