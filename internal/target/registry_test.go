package target_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

func invoiceEvent(action event.Action, priority int, fields ...event.Field) *event.Event {
	return event.New(event.Change{
		TenantID:   "t1",
		Module:     "finance",
		EntityType: "invoice",
		EntityID:   "7",
		Action:     action,
		Payload:    fields,
		Priority:   priority,
	})
}

func TestFilters_Match(t *testing.T) {
	ev := invoiceEvent(event.ActionCreate, 5,
		event.F("status", "SENT"),
		event.F("customer_id", 12),
		event.F("discount", 2.5),
		event.F("paid", false),
		event.F("memo", nil),
	)
	cases := []struct {
		name    string
		filters target.Filters
		want    bool
	}{
		{name: "nil filters match nothing", filters: nil, want: false},
		{name: "empty filters match nothing", filters: target.Filters{}, want: false},
		{name: "attribute match", filters: target.Filters{"entity_type": {"invoice", "payment"}}, want: true},
		{name: "attribute miss", filters: target.Filters{"entity_type": {"payment"}}, want: false},
		{name: "two keys both match", filters: target.Filters{"entity_type": {"invoice"}, "action": {"CREATE", "UPDATE"}}, want: true},
		{name: "two keys one misses", filters: target.Filters{"entity_type": {"invoice"}, "action": {"DELETE"}}, want: false},
		{name: "payload key match", filters: target.Filters{"status": {"SENT"}}, want: true},
		{name: "payload numeric vs string", filters: target.Filters{"customer_id": {"12"}}, want: true},
		{name: "attribute string vs numeric", filters: target.Filters{"entity_id": {7}}, want: true},
		{name: "float vs int", filters: target.Filters{"customer_id": {12.0}}, want: true},
		{name: "float vs canonical string", filters: target.Filters{"discount": {"2.5"}}, want: true},
		{name: "zero-padded string", filters: target.Filters{"entity_id": {"007"}}, want: false},
		{name: "decimal string vs integer string", filters: target.Filters{"entity_id": {"7.0"}}, want: false},
		{name: "hex float string", filters: target.Filters{"entity_id": {"0x7p0"}}, want: false},
		{name: "non-canonical string vs number", filters: target.Filters{"customer_id": {"012"}}, want: false},
		{name: "bool match", filters: target.Filters{"paid": {false}}, want: true},
		{name: "bool vs string", filters: target.Filters{"paid": {"false"}}, want: false},
		{name: "nil string form", filters: target.Filters{"memo": {"<nil>"}}, want: false},
		{name: "nil vs nil", filters: target.Filters{"memo": {nil}}, want: true},
		{name: "missing key is fail-closed", filters: target.Filters{"region": {"eu"}}, want: false},
		{name: "missing key beside a match", filters: target.Filters{"entity_type": {"invoice"}, "region": {"eu"}}, want: false},
		{name: "empty allowed set", filters: target.Filters{"entity_type": {}}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filters.Match(ev))
		})
	}
}

func TestRegistry_RegisterAndTargetsFor(t *testing.T) {
	r := target.NewRegistry()
	require.NoError(t, r.Register("crm", target.Target{
		Service: "CustomerService", Method: "update_financial_data",
		Filters: target.Filters{"entity_type": {"invoice", "payment"}},
	}))
	require.NoError(t, r.Register("inventory", target.Target{
		Service: "InventoryService", Method: "update_financial_metrics",
		Filters: target.Filters{"entity_type": {"invoice"}, "action": {"CREATE"}},
	}))
	require.NoError(t, r.Register("workflow", target.Target{
		Service: "WorkflowService", Method: "trigger_financial_workflows",
	}))

	got := r.TargetsFor(invoiceEvent(event.ActionCreate, 5))
	require.Len(t, got, 2)
	assert.Equal(t, "crm", got[0].Module)
	assert.Equal(t, "inventory", got[1].Module)

	got = r.TargetsFor(invoiceEvent(event.ActionUpdate, 5))
	require.Len(t, got, 1)
	assert.Equal(t, "CustomerService", got[0].Service)

	assert.Equal(t, 3, r.Len())
}

func TestRegistry_RegisterReplacesSameKey(t *testing.T) {
	r := target.NewRegistry()
	base := target.Target{Service: "S", Method: "m", Filters: target.Filters{"entity_type": {"invoice"}}, MaxRetries: 1}
	require.NoError(t, r.Register("crm", base))
	base.MaxRetries = 4
	require.NoError(t, r.Register("crm", base))

	assert.Equal(t, 1, r.Len())
	got, ok := r.Lookup(target.Key{Module: "crm", Service: "S", Method: "m"})
	require.True(t, ok)
	assert.Equal(t, 4, got.MaxRetries)
}

func TestRegistry_RegisterValidates(t *testing.T) {
	r := target.NewRegistry()
	assert.Error(t, r.Register("", target.Target{Service: "S", Method: "m"}))
	assert.Error(t, r.Register("crm", target.Target{Method: "m"}))
	assert.Error(t, r.Register("crm", target.Target{Service: "S", Method: "m", MaxRetries: -1}))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_HighPrioritySortsByRetryBudget(t *testing.T) {
	r := target.NewRegistry()
	f := target.Filters{"entity_type": {"invoice"}}
	require.NoError(t, r.Register("crm", target.Target{Service: "A", Method: "m", Filters: f, MaxRetries: 1}))
	require.NoError(t, r.Register("ecommerce", target.Target{Service: "B", Method: "m", Filters: f, MaxRetries: 5}))
	require.NoError(t, r.Register("inventory", target.Target{Service: "C", Method: "m", Filters: f, MaxRetries: 3}))

	low := r.TargetsFor(invoiceEvent(event.ActionCreate, 7))
	assert.Equal(t, []string{"A", "B", "C"}, services(low))

	high := r.TargetsFor(invoiceEvent(event.ActionCreate, 9))
	assert.Equal(t, []string{"B", "C", "A"}, services(high))
}

func TestRegistry_Unregister(t *testing.T) {
	r := target.NewRegistry()
	require.NoError(t, r.Register("crm", target.Target{Service: "S", Method: "m", Filters: target.Filters{"entity_type": {"invoice"}}}))

	assert.False(t, r.Unregister("crm", "S", "other"))
	assert.False(t, r.Unregister("nope", "S", "m"))
	assert.True(t, r.Unregister("crm", "S", "m"))
	assert.Empty(t, r.TargetsFor(invoiceEvent(event.ActionCreate, 5)))
}

func TestRegistry_Configure(t *testing.T) {
	r := target.NewRegistry()
	require.NoError(t, r.Register("crm", target.Target{
		Service: "S", Method: "m", Filters: target.Filters{"entity_type": {"invoice"}},
		RetryOnFailure: true, MaxRetries: 3, BatchSize: 5,
	}))

	retries := 7
	off := false
	updated, err := r.Configure("crm", target.Patch{Service: "S", Method: "m", MaxRetries: &retries, RetryOnFailure: &off})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.MaxRetries)
	assert.False(t, updated.RetryOnFailure)
	assert.Equal(t, 5, updated.BatchSize)

	_, err = r.Configure("billing", target.Patch{Service: "S", Method: "m"})
	assert.True(t, errors.Is(err, target.ErrNotFound))

	_, err = r.Configure("crm", target.Patch{Service: "S", Method: "x"})
	assert.True(t, errors.Is(err, target.ErrNotFound))

	neg := -1
	_, err = r.Configure("crm", target.Patch{Service: "S", Method: "m", MaxRetries: &neg})
	assert.Error(t, err)
}

func TestRegistry_CopiesAreIsolated(t *testing.T) {
	r := target.NewRegistry()
	f := target.Filters{"entity_type": {"invoice"}}
	require.NoError(t, r.Register("crm", target.Target{Service: "S", Method: "m", Filters: f}))
	f["entity_type"][0] = "payment"

	snap := r.ByModule()
	snap["crm"][0].Filters["entity_type"] = []any{"journal_entry"}

	assert.Len(t, r.TargetsFor(invoiceEvent(event.ActionCreate, 5)), 1)
}

func TestRegistry_Replace(t *testing.T) {
	r := target.NewRegistry()
	require.NoError(t, r.Register("crm", target.Target{Service: "S", Method: "m", Filters: target.Filters{"entity_type": {"invoice"}}}))

	r.Replace(map[string][]target.Target{
		"workflow": {{Service: "W", Method: "t", Filters: target.Filters{"action": {"CREATE"}}}},
	})
	got := r.TargetsFor(invoiceEvent(event.ActionCreate, 5))
	require.Len(t, got, 1)
	assert.Equal(t, "workflow", got[0].Module)
	_, ok := r.Lookup(target.Key{Module: "crm", Service: "S", Method: "m"})
	assert.False(t, ok)
}

func TestRegistry_ConcurrentReadersAndWriters(t *testing.T) {
	r := target.NewRegistry()
	ev := invoiceEvent(event.ActionCreate, 5)
	f := target.Filters{"entity_type": {"invoice"}}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = r.Register("crm", target.Target{Service: "S", Method: "m", Filters: f, MaxRetries: i % 4})
				r.Unregister("crm", "S", "m")
			}
		}(w)
	}
	for rd := 0; rd < 4; rd++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				for _, tg := range r.TargetsFor(ev) {
					assert.Equal(t, "S", tg.Service)
					assert.Equal(t, "m", tg.Method)
				}
			}
		}()
	}
	wg.Wait()
}

func services(ts []target.Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Service
	}
	return out
}
