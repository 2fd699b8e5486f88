// Package tenant keeps one sync engine per tenant.
package tenant

import (
	"errors"
	"sort"
	"sync"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/engine"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/producer"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

var ErrInvalidID = errors.New("tenant id is required")

// Tenant bundles the engine and producer serving one tenant.
type Tenant struct {
	ID       string
	Engine   *engine.Engine
	Observer *producer.Observer
}

// Factory builds the Tenant for id. It is called at most once per id.
type Factory func(id string) *Tenant

// Set is safe for concurrent use.
type Set struct {
	mu      sync.RWMutex
	factory Factory
	tenants map[string]*Tenant
}

// NewSet creates an empty Set.
func NewSet(f Factory) *Set {
	return &Set{factory: f, tenants: make(map[string]*Tenant)}
}

// Get returns the tenant for id, creating it on first use.
func (s *Set) Get(id string) (*Tenant, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	t, ok := s.tenants[id]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	t = s.factory(id)
	s.tenants[id] = t
	return t, nil
}

// Lookup returns an existing tenant without creating one.
func (s *Set) Lookup(id string) (*Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	return t, ok
}

// IDs returns the known tenant IDs in sorted order.
func (s *Set) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Range calls fn for each tenant in ID order until fn returns false.
func (s *Set) Range(fn func(*Tenant) bool) {
	for _, id := range s.IDs() {
		t, ok := s.Lookup(id)
		if !ok {
			continue
		}
		if !fn(t) {
			return
		}
	}
}

// StartAll starts every engine and returns each status by tenant ID.
func (s *Set) StartAll() map[string]engine.Status {
	out := make(map[string]engine.Status)
	s.Range(func(t *Tenant) bool {
		out[t.ID] = t.Engine.Start()
		return true
	})
	return out
}

// StopAll stops every engine concurrently, so the total wait is bounded by
// one stop timeout rather than the sum.
func (s *Set) StopAll() map[string]engine.Status {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]engine.Status)
	)
	s.Range(func(t *Tenant) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := t.Engine.Stop()
			mu.Lock()
			out[t.ID] = st
			mu.Unlock()
		}()
		return true
	})
	wg.Wait()
	return out
}

// ApplyTargets replaces every tenant's targets with byModule.
func (s *Set) ApplyTargets(byModule map[string][]target.Target) {
	s.Range(func(t *Tenant) bool {
		t.Engine.ReplaceTargets(byModule)
		return true
	})
}

// MaxQueueUtilization returns the fullest tenant queue's utilization.
func (s *Set) MaxQueueUtilization() float64 {
	var peak float64
	s.Range(func(t *Tenant) bool {
		if u := t.Engine.QueueUtilization(); u > peak {
			peak = u
		}
		return true
	})
	return peak
}
