package target

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a module or target is not registered.
var ErrNotFound = errors.New("sync target not found")

// Key identifies a downstream handler.
type Key struct {
	Module  string `json:"module"`
	Service string `json:"service"`
	Method  string `json:"method"`
}

func (k Key) String() string { return fmt.Sprintf("%s.%s.%s", k.Module, k.Service, k.Method) }

// Filters maps an event attribute or payload key to its accepted values.
type Filters map[string][]any

// Clone deep-copies the filter set.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for k, vs := range f {
		cp := make([]any, len(vs))
		copy(cp, vs)
		out[k] = cp
	}
	return out
}

// Target is one configured downstream consumer.
type Target struct {
	Module         string  `json:"target_module"`
	Service        string  `json:"target_service"`
	Method         string  `json:"target_method"`
	Filters        Filters `json:"filters"`
	Transform      bool    `json:"transform_data"`
	RetryOnFailure bool    `json:"retry_on_failure"`
	MaxRetries     int     `json:"max_retries"`
	// BatchSize is reserved; delivery is one event per call.
	BatchSize int `json:"batch_size"`
}

// Key returns the handler key for t.
func (t Target) Key() Key { return Key{Module: t.Module, Service: t.Service, Method: t.Method} }

// Clone returns a copy that shares no mutable state with t.
func (t Target) Clone() Target {
	t.Filters = t.Filters.Clone()
	return t
}

// Patch is a partial update applied by Registry.Configure.
// Service and Method select the target; nil fields are left unchanged.
type Patch struct {
	Service        string  `json:"target_service"`
	Method         string  `json:"target_method"`
	Filters        Filters `json:"filters,omitempty"`
	Transform      *bool   `json:"transform_data,omitempty"`
	RetryOnFailure *bool   `json:"retry_on_failure,omitempty"`
	MaxRetries     *int    `json:"max_retries,omitempty"`
	BatchSize      *int    `json:"batch_size,omitempty"`
}

func (p Patch) validate() error {
	if p.Service == "" || p.Method == "" {
		return fmt.Errorf("target_service and target_method are required")
	}
	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", *p.MaxRetries)
	}
	if p.BatchSize != nil && *p.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", *p.BatchSize)
	}
	if p.Filters != nil && len(p.Filters) == 0 {
		return fmt.Errorf("filters must not be empty")
	}
	return nil
}

func (p Patch) apply(t *Target) {
	if p.Filters != nil {
		t.Filters = p.Filters.Clone()
	}
	if p.Transform != nil {
		t.Transform = *p.Transform
	}
	if p.RetryOnFailure != nil {
		t.RetryOnFailure = *p.RetryOnFailure
	}
	if p.MaxRetries != nil {
		t.MaxRetries = *p.MaxRetries
	}
	if p.BatchSize != nil {
		t.BatchSize = *p.BatchSize
	}
}
