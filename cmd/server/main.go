package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/api"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/config"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/consumer"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/downstream"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/engine"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/finance"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/stats"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/tenant"
)

func main() {
	env := config.LoadEnv()
	addr := flag.String("addr", env.Addr, "HTTP listen address")
	cfgPath := flag.String("config", env.ConfigPath, "Path to sync targets YAML config")
	tenants := flag.String("tenants", "", "Comma-separated tenants to start at boot (default $SYNC_TENANTS)")
	logLevel := flag.String("log-level", env.LogLevel, "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", env.LogFormat, "Log format: text or json")
	flag.Parse()

	logger := newLogger(*logLevel, *logFormat)
	slog.SetDefault(logger)

	bootTenants := env.Tenants
	if *tenants != "" {
		bootTenants = config.SplitList(*tenants)
	}

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath, logger)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Downstream handlers ───────────────────────────────────────────────────
	handlers := consumer.NewRegistry()
	downstream.Register(handlers, logger)
	slog.Info("downstream handlers registered", "count", len(handlers.Keys()))

	// ── Stats cache ───────────────────────────────────────────────────────────
	var cache *stats.Cache
	if env.RedisURL != "" {
		opt, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			slog.Warn("redis unreachable, stats snapshots will fail until it recovers", "err", err)
		}
		pingCancel()
		cache = stats.NewCache(rdb, cfg.Engine.StatsTTL())
	}

	// ── Tenants ───────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := finance.NewStore()
	wiring := tenant.Wiring{
		Engine: cfg.Engine,
		Targets: func() map[string][]target.Target {
			return loader.Config().TargetsByModule()
		},
		Handlers: handlers,
		Store:    store,
		Context:  ctx,
		Logger:   logger,

		AutoStart: true,
	}
	if cache != nil {
		wiring.Sink = cache
	}
	set := tenant.NewSet(wiring.Factory())
	for _, id := range bootTenants {
		if _, err := set.Get(id); err != nil {
			slog.Error("invalid tenant", "tenant_id", id, "err", err)
			os.Exit(1)
		}
	}

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.SyncConfig) {
		set.ApplyTargets(newCfg.TargetsByModule())
		slog.Info("sync targets hot-reloaded", "tenants", len(set.IDs()))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(api.Deps{
		Tenants: set,
		Store:   store,
		Loader:  loader,
		Cache:   cache,
		Logger:  logger,
	})
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr, "tenants", bootTenants)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	for id, st := range set.StopAll() {
		if !st.Success && !errors.Is(st.Err, engine.ErrNotRunning) {
			slog.Warn("tenant stop incomplete", "tenant_id", id, "message", st.Message)
		}
	}
	cancel() // stop stats reporters
	slog.Info("goodbye")
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
