package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/config"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/engine"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/finance"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/stats"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/tenant"
)

const maxBodyBytes = 1 << 20

// readyThreshold is the queue utilization above which /readyz reports overload.
const readyThreshold = 0.8

// Deps are the collaborators the HTTP surface needs. Loader and Cache are optional.
type Deps struct {
	Tenants *tenant.Set
	Store   *finance.Store
	Loader  *config.Loader
	Cache   *stats.Cache
	Logger  *slog.Logger
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Deps
	mux *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &Handler{Deps: d, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/tenants/{tenant}/sync/start", h.startSync)
	h.mux.HandleFunc("POST /v1/tenants/{tenant}/sync/stop", h.stopSync)
	h.mux.HandleFunc("POST /v1/tenants/{tenant}/sync/manual", h.manualSync)
	h.mux.HandleFunc("GET /v1/tenants/{tenant}/sync/config", h.syncConfig)
	h.mux.HandleFunc("GET /v1/tenants/{tenant}/sync/stats", h.syncStats)
	h.mux.HandleFunc("GET /v1/tenants/{tenant}/sync/stats/cached", h.cachedStats)
	h.mux.HandleFunc("PUT /v1/tenants/{tenant}/sync/targets/{module}", h.configureTarget)
	h.mux.HandleFunc("POST /v1/tenants/{tenant}/sync/targets/{module}", h.registerTarget)
	h.mux.HandleFunc("DELETE /v1/tenants/{tenant}/sync/targets/{module}/{service}/{method}", h.unregisterTarget)
	h.mux.HandleFunc("POST /v1/tenants/{tenant}/entities/{type}", h.saveEntity)
	h.mux.HandleFunc("DELETE /v1/tenants/{tenant}/entities/{type}/{id}", h.deleteEntity)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.Logger, h.mux)
}

// tenantFor resolves the {tenant} path value to a known tenant, writing a
// 404 when there is none.
func (h *Handler) tenantFor(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	id := r.PathValue("tenant")
	t, ok := h.Tenants.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tenant %q", id))
		return nil, false
	}
	return t, true
}

// tenantOrCreate is tenantFor for the routes that bring a tenant into being:
// starting sync and committing its first record.
func (h *Handler) tenantOrCreate(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	t, err := h.Tenants.Get(r.PathValue("tenant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return t, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	return true
}

// POST /v1/tenants/{tenant}/sync/start
func (h *Handler) startSync(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOrCreate(w, r)
	if !ok {
		return
	}
	writeStatus(w, http.StatusOK, t.Engine.Start())
}

// POST /v1/tenants/{tenant}/sync/stop
func (h *Handler) stopSync(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	writeStatus(w, http.StatusOK, t.Engine.Stop())
}

type manualRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
}

// POST /v1/tenants/{tenant}/sync/manual: queue one entity at manual priority.
func (h *Handler) manualSync(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	var req manualRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EntityType == "" || req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "entity_type and entity_id are required")
		return
	}
	action := event.ActionUpdate
	if req.Action != "" {
		a, err := event.ParseAction(req.Action)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		action = a
	}

	res := t.Observer.ManualSync(r.Context(), req.EntityType, req.EntityID, action)
	switch {
	case res.Success:
		writeJSON(w, http.StatusAccepted, res)
	case errors.Is(res.Err, finance.ErrNotFound):
		writeJSON(w, http.StatusNotFound, res)
	case errors.Is(res.Err, engine.ErrQueueFull):
		writeJSON(w, http.StatusTooManyRequests, res)
	default:
		writeJSON(w, http.StatusInternalServerError, res)
	}
}

// GET /v1/tenants/{tenant}/sync/config
func (h *Handler) syncConfig(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Engine.Configuration())
}

// GET /v1/tenants/{tenant}/sync/stats
func (h *Handler) syncStats(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Engine.Stats())
}

// GET /v1/tenants/{tenant}/sync/stats/cached: last snapshot published to redis.
func (h *Handler) cachedStats(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		writeError(w, http.StatusServiceUnavailable, "stats cache not configured")
		return
	}
	id := r.PathValue("tenant")
	s, err := h.Cache.Fetch(r.Context(), id)
	switch {
	case errors.Is(err, stats.ErrNoSnapshot):
		writeError(w, http.StatusNotFound, fmt.Sprintf("no cached stats for tenant %q", id))
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, s)
	}
}

// PUT /v1/tenants/{tenant}/sync/targets/{module}: partial update of one target.
func (h *Handler) configureTarget(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	var p target.Patch
	if !decodeBody(w, r, &p) {
		return
	}
	writeStatus(w, http.StatusOK, t.Engine.ConfigureTarget(r.PathValue("module"), p))
}

// POST /v1/tenants/{tenant}/sync/targets/{module}
func (h *Handler) registerTarget(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	// Unset fields take the same defaults as the config file.
	tg := target.Target{Transform: true, RetryOnFailure: true, MaxRetries: 3, BatchSize: 1}
	if !decodeBody(w, r, &tg) {
		return
	}
	if len(tg.Filters) == 0 {
		writeError(w, http.StatusBadRequest, "filters must not be empty")
		return
	}
	writeStatus(w, http.StatusCreated, t.Engine.RegisterTarget(r.PathValue("module"), tg))
}

// DELETE /v1/tenants/{tenant}/sync/targets/{module}/{service}/{method}
func (h *Handler) unregisterTarget(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	if !t.Engine.UnregisterTarget(r.PathValue("module"), r.PathValue("service"), r.PathValue("method")) {
		writeError(w, http.StatusNotFound, "sync target not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// POST /v1/tenants/{tenant}/entities/{type}: commit a finance record, which
// emits a sync event.
func (h *Handler) saveEntity(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOrCreate(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := finance.Decode(t.ID, r.PathValue("type"), body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, finance.ErrUnknownType) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	created, err := h.Store.Save(r.Context(), rec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ref := rec.SyncRef()
	writeJSON(w, status, map[string]interface{}{
		"entity_type": ref.EntityType,
		"entity_id":   ref.EntityID,
		"created":     created,
	})
}

// DELETE /v1/tenants/{tenant}/entities/{type}/{id}
func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantFor(w, r)
	if !ok {
		return
	}
	err := h.Store.Delete(r.Context(), t.ID, r.PathValue("type"), r.PathValue("id"))
	if errors.Is(err, finance.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/config/reload: re-read the config file and replace every tenant's targets.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.Loader == nil {
		writeError(w, http.StatusServiceUnavailable, "config reload not available")
		return
	}
	cfg, err := h.Loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.Tenants.ApplyTargets(cfg.TargetsByModule())
	count := 0
	for _, defs := range cfg.Targets {
		count += len(defs)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":     true,
		"target_count": count,
		"tenants":      h.Tenants.IDs(),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if any tenant queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.Tenants.MaxQueueUtilization()
	if util > readyThreshold {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
