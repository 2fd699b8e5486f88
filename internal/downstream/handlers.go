// Package downstream provides the in-process consumers that receive finance
// sync deliveries. Each handler logs what it would apply to its module.
package downstream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/consumer"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

// Handler is one downstream method bound to its key.
type Handler struct {
	Key    target.Key
	logger *slog.Logger
	msg    string
	field  string
	needs  []string
}

// Handle logs the field of interest. A delivery missing a required field is
// rejected as fatal, since retrying it cannot help.
func (h *Handler) Handle(ctx context.Context, data map[string]any) consumer.Result {
	for _, k := range h.needs {
		if _, ok := data[k]; !ok {
			return consumer.Abort(fmt.Errorf("%s: missing %q", h.Key, k))
		}
	}
	h.logger.InfoContext(ctx, h.msg,
		"target", h.Key.String(),
		"tenant_id", data["tenant_id"],
		h.field, data[h.field],
	)
	return consumer.OK()
}

// Handlers returns the built-in consumers for crm, inventory, ecommerce and workflow.
func Handlers(logger *slog.Logger) []*Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sync.downstream")
	mk := func(module, service, method, msg, field string, needs ...string) *Handler {
		return &Handler{
			Key:    target.Key{Module: module, Service: service, Method: method},
			logger: logger,
			msg:    msg,
			field:  field,
			needs:  needs,
		}
	}
	return []*Handler{
		mk("crm", "CustomerService", "update_financial_data", "crm: updated financial data", "customer_id"),
		mk("crm", "OpportunityService", "update_revenue_data", "crm: updated revenue data", "revenue_amount"),
		mk("inventory", "InventoryService", "update_financial_metrics", "inventory: updated financial metrics", "revenue_indicator"),
		mk("ecommerce", "OrderService", "sync_payment_status", "ecommerce: synced payment status", "financial_status"),
		mk("ecommerce", "CustomerService", "update_customer_financial_profile", "ecommerce: updated customer profile", "customer_id"),
		mk("workflow", "WorkflowService", "trigger_financial_workflows", "workflow: triggered workflows", "workflow_context", "trigger_data"),
	}
}

// Register adds every built-in handler to reg.
func Register(reg *consumer.Registry, logger *slog.Logger) {
	for _, h := range Handlers(logger) {
		reg.Register(h.Key, h)
	}
}
