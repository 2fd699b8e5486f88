package target

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
)

// highPriority is the event priority above which targets with larger retry
// budgets are tried first.
const highPriority = 7

// Registry holds sync targets grouped by downstream module.
// Reads are concurrent; every write is exclusive and readers only ever see
// copies, so a registration is either fully visible or not at all.
type Registry struct {
	mu      sync.RWMutex
	order   []string // module registration order
	targets map[string][]Target
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string][]Target)}
}

// Register adds t under module, replacing any target with the same service and method.
func (r *Registry) Register(module string, t Target) error {
	if module == "" {
		return fmt.Errorf("register target: module is required")
	}
	if t.Service == "" || t.Method == "" {
		return fmt.Errorf("register target %s: service and method are required", module)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("register target %s.%s.%s: max_retries must be >= 0", module, t.Service, t.Method)
	}
	t = t.Clone()
	t.Module = module

	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.targets[module]
	if !ok {
		r.order = append(r.order, module)
	}
	for i := range list {
		if list[i].Service == t.Service && list[i].Method == t.Method {
			next := append([]Target(nil), list...)
			next[i] = t
			r.targets[module] = next
			return nil
		}
	}
	r.targets[module] = append(append([]Target(nil), list...), t)
	return nil
}

// Unregister removes a target and reports whether one was removed.
func (r *Registry) Unregister(module, service, method string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.targets[module]
	if !ok {
		return false
	}
	next := make([]Target, 0, len(list))
	for _, t := range list {
		if t.Service == service && t.Method == method {
			continue
		}
		next = append(next, t)
	}
	if len(next) == len(list) {
		return false
	}
	r.targets[module] = next
	return true
}

// Configure applies p to the target selected by module, p.Service and p.Method.
func (r *Registry) Configure(module string, p Patch) (Target, error) {
	if err := p.validate(); err != nil {
		return Target{}, fmt.Errorf("configure %s: %w", module, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.targets[module]
	if !ok {
		return Target{}, fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	for i := range list {
		if list[i].Service != p.Service || list[i].Method != p.Method {
			continue
		}
		updated := list[i].Clone()
		p.apply(&updated)
		next := append([]Target(nil), list...)
		next[i] = updated
		r.targets[module] = next
		return updated.Clone(), nil
	}
	return Target{}, fmt.Errorf("%s.%s.%s: %w", module, p.Service, p.Method, ErrNotFound)
}

// Replace swaps the whole target set in one write.
func (r *Registry) Replace(byModule map[string][]Target) {
	modules := make([]string, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	targets := make(map[string][]Target, len(byModule))
	for _, m := range modules {
		list := make([]Target, 0, len(byModule[m]))
		for _, t := range byModule[m] {
			t = t.Clone()
			t.Module = m
			list = append(list, t)
		}
		targets[m] = list
	}

	r.mu.Lock()
	r.order = modules
	r.targets = targets
	r.mu.Unlock()
}

// TargetsFor returns copies of every target, across all modules, whose
// filters match ev. High-priority events list targets with the largest
// retry budget first.
func (r *Registry) TargetsFor(ev *event.Event) []Target {
	r.mu.RLock()
	var out []Target
	for _, m := range r.order {
		for _, t := range r.targets[m] {
			if t.Filters.Match(ev) {
				out = append(out, t.Clone())
			}
		}
	}
	r.mu.RUnlock()

	if ev.Priority > highPriority {
		sort.SliceStable(out, func(i, j int) bool { return out[i].MaxRetries > out[j].MaxRetries })
	}
	return out
}

// Lookup returns the target registered under k.
func (r *Registry) Lookup(k Key) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.targets[k.Module] {
		if t.Service == k.Service && t.Method == k.Method {
			return t.Clone(), true
		}
	}
	return Target{}, false
}

// ByModule returns a deep copy of the registry contents.
func (r *Registry) ByModule() map[string][]Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]Target, len(r.targets))
	for m, list := range r.targets {
		cp := make([]Target, len(list))
		for i, t := range list {
			cp[i] = t.Clone()
		}
		out[m] = cp
	}
	return out
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.targets {
		n += len(list)
	}
	return n
}
