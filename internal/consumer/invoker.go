package consumer

import (
	"context"
	"fmt"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

// Invoker resolves a target to its handler and calls it.
type Invoker struct {
	registry *Registry
}

// NewInvoker creates an Invoker backed by reg.
func NewInvoker(reg *Registry) *Invoker {
	return &Invoker{registry: reg}
}

// Invoke delivers data to t. An unresolved target is fatal; a panicking
// handler is reported as retryable.
func (i *Invoker) Invoke(ctx context.Context, t target.Target, data map[string]any) (res Result) {
	h, err := i.registry.Lookup(t.Key())
	if err != nil {
		return Abort(err)
	}
	defer func() {
		if p := recover(); p != nil {
			res = Retry(fmt.Errorf("handler %s panicked: %v", t.Key(), p))
		}
	}()
	return h.Handle(ctx, data)
}
