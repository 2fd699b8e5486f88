package tenant

import (
	"context"
	"log/slog"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/config"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/consumer"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/engine"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/finance"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/producer"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/stats"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/transform"
)

// Wiring describes how each tenant's components are assembled.
type Wiring struct {
	Engine   config.EngineConf
	Targets  func() map[string][]target.Target // initial targets for a new tenant
	Handlers *consumer.Registry
	Store    *finance.Store // optional; hooks the tenant's observer to store changes
	Sink     stats.Sink     // optional; receives periodic stats snapshots
	Context  context.Context
	Logger   *slog.Logger
	Options  []engine.Option

	// AutoStart starts each engine as soon as its tenant is created.
	AutoStart bool
}

// Factory returns a Factory that builds tenants from w.
func (w Wiring) Factory() Factory {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := w.Context
	if ctx == nil {
		ctx = context.Background()
	}
	invoker := consumer.NewInvoker(w.Handlers)

	return func(id string) *Tenant {
		reg := target.NewRegistry()
		if w.Targets != nil {
			reg.Replace(w.Targets())
		}
		tr := transform.New(transform.WithLogger(logger.With("tenant_id", id, "component", "sync.transform")))
		opts := append([]engine.Option{engine.WithLogger(logger)}, w.Options...)
		eng := engine.New(id, reg, invoker, tr, w.Engine, opts...)

		obsOpts := []producer.Option{producer.WithLogger(logger)}
		if w.Store != nil {
			obsOpts = append(obsOpts, producer.WithLookup(w.Store))
		}
		obs := producer.NewObserver(id, eng, obsOpts...)
		if w.Store != nil {
			w.Store.OnSaved(obs.OnEntitySaved)
			w.Store.OnDeleted(obs.OnEntityDeleted)
		}

		if w.Sink != nil {
			rep := stats.NewReporter(id, eng.Stats, w.Sink, w.Engine.StatsInterval(), logger)
			go rep.Run(ctx)
		}
		if w.AutoStart {
			if st := eng.Start(); !st.Success {
				logger.Warn("tenant sync engine did not start", "tenant_id", id, "message", st.Message)
			}
		}
		logger.Info("tenant sync engine created", "tenant_id", id, "target_count", reg.Len(), "running", eng.Running())
		return &Tenant{ID: id, Engine: eng, Observer: obs}
	}
}
