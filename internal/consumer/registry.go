package consumer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

// ErrUnknownHandler is returned when no handler is registered for a key.
var ErrUnknownHandler = errors.New("no handler registered")

// Registry maps (module, service, method) keys to their handlers.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[target.Key]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[target.Key]Handler)}
}

// Register adds a handler. Panics on a duplicate key to surface misconfiguration early.
func (r *Registry) Register(k target.Key, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[k]; exists {
		panic(fmt.Sprintf("consumer registry: duplicate handler %s", k))
	}
	r.handlers[k] = h
}

// Lookup returns the handler for k.
func (r *Registry) Lookup(k target.Key) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, ErrUnknownHandler)
	}
	return h, nil
}

// Keys returns every registered key, sorted.
func (r *Registry) Keys() []target.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]target.Key, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
