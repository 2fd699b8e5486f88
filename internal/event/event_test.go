package event_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
)

func TestParseAction(t *testing.T) {
	cases := []struct {
		in      string
		want    event.Action
		wantErr bool
	}{
		{in: "create", want: event.ActionCreate},
		{in: " Update ", want: event.ActionUpdate},
		{in: "DELETE", want: event.ActionDelete},
		{in: "upsert", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := event.ParseAction(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNew_StampsAndClamps(t *testing.T) {
	payload := event.Payload{event.F("total_amount", 10.5)}
	ev := event.New(event.Change{
		TenantID:   "t1",
		Module:     "finance",
		EntityType: "invoice",
		EntityID:   "42",
		Action:     event.ActionCreate,
		Payload:    payload,
		Priority:   99,
	})

	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, event.PriorityMax, ev.Priority)
	assert.Equal(t, 0, ev.RetryCount())
	assert.False(t, ev.Processed())

	// The event owns its payload.
	payload[0].Value = 0.0
	v, _ := ev.Payload.Get("total_amount")
	assert.Equal(t, 10.5, v)

	other := event.New(event.Change{Priority: 0})
	assert.Equal(t, event.PriorityDefault, other.Priority)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestLookup_AttributeBeforePayload(t *testing.T) {
	ev := event.New(event.Change{
		EntityType: "invoice",
		Action:     event.ActionUpdate,
		Payload: event.Payload{
			event.F("entity_type", "shadowed"),
			event.F("status", "PAID"),
		},
	})

	v, ok := ev.Lookup("entity_type")
	require.True(t, ok)
	assert.Equal(t, "invoice", v)

	v, ok = ev.Lookup("action")
	require.True(t, ok)
	assert.Equal(t, "UPDATE", v)

	v, ok = ev.Lookup("status")
	require.True(t, ok)
	assert.Equal(t, "PAID", v)

	_, ok = ev.Lookup("missing")
	assert.False(t, ok)
}

func TestNoteRetry_KeepsMaximum(t *testing.T) {
	ev := event.New(event.Change{})
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ev.NoteRetry(n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, ev.RetryCount())

	ev.NoteRetry(3)
	assert.Equal(t, 20, ev.RetryCount())
}

func TestPayload_OrderedJSON(t *testing.T) {
	p := event.Payload{
		event.F("b", 1),
		event.F("a", "x"),
		event.F("c", nil),
	}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":"x","c":null}`, string(raw))
	assert.Equal(t, `{"b":1,"a":"x","c":null}`, string(raw))
	assert.Equal(t, []string{"b", "a", "c"}, p.Keys())
	assert.Equal(t, map[string]any{"a": "x", "b": 1, "c": nil}, p.Map())
}

func TestPayload_CopiesNestedValues(t *testing.T) {
	p := event.Payload{
		event.F("line_items", []map[string]any{{"product_id": "sku-1"}}),
		event.F("tags", []any{"a", map[string]any{"k": "v"}}),
		event.F("meta", map[string]any{"source": "api"}),
	}

	m := p.Map()
	m["line_items"].([]map[string]any)[0]["product_id"] = "changed"
	m["tags"].([]any)[1].(map[string]any)["k"] = "changed"
	m["meta"].(map[string]any)["source"] = "changed"

	c := p.Clone()
	v, _ := c.Get("meta")
	v.(map[string]any)["source"] = "changed"

	items, _ := p.Get("line_items")
	assert.Equal(t, "sku-1", items.([]map[string]any)[0]["product_id"])
	tags, _ := p.Get("tags")
	assert.Equal(t, "v", tags.([]any)[1].(map[string]any)["k"])
	meta, _ := p.Get("meta")
	assert.Equal(t, "api", meta.(map[string]any)["source"])
}

func TestNew_DetachesPayload(t *testing.T) {
	items := []map[string]any{{"product_id": "sku-1"}}
	ev := event.New(event.Change{
		TenantID: "acme", EntityType: "invoice", EntityID: "1", Action: event.ActionCreate,
		Payload: event.Payload{event.F("line_items", items)},
	})
	items[0]["product_id"] = "changed"

	got, _ := ev.Payload.Get("line_items")
	assert.Equal(t, "sku-1", got.([]map[string]any)[0]["product_id"])
}
