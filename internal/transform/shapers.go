package transform

import (
	"time"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
)

func shapeCRM(ev *event.Event, data map[string]any) (map[string]any, error) {
	switch ev.EntityType {
	case "invoice":
		data["financial_event_type"] = "invoice_activity"
		data["customer_impact"] = true
		data["revenue_amount"] = valueOr(data, "total_amount", 0.0)
	case "payment":
		data["financial_event_type"] = "payment_activity"
		data["customer_impact"] = true
		data["cash_flow_impact"] = valueOr(data, "amount", 0.0)
	}
	return data, nil
}

func shapeInventory(ev *event.Event, data map[string]any) (map[string]any, error) {
	if ev.EntityType != "invoice" {
		return data, nil
	}
	data["demand_signal"] = true
	data["revenue_indicator"] = valueOr(data, "total_amount", 0.0)
	if items, ok := data["line_items"]; ok {
		data["product_demand"] = productDemand(items)
	}
	return data, nil
}

// productDemand keeps only line items that name a product.
func productDemand(items any) []map[string]any {
	var rows []map[string]any
	switch v := items.(type) {
	case []map[string]any:
		rows = v
	case []any:
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
	}
	out := make([]map[string]any, 0, len(rows))
	for _, item := range rows {
		pid, ok := item["product_id"]
		if !ok || pid == nil || pid == "" {
			continue
		}
		out = append(out, map[string]any{
			"product_id":    pid,
			"quantity_sold": item["quantity"],
			"revenue":       item["total_amount"],
		})
	}
	return out
}

func shapeEcommerce(ev *event.Event, data map[string]any) (map[string]any, error) {
	switch ev.EntityType {
	case "payment":
		data["payment_status_update"] = true
		data["financial_status"] = data["status"]
		data["payment_amount"] = valueOr(data, "amount", 0.0)
	case "invoice":
		data["order_financial_update"] = true
		data["billing_status"] = data["status"]
		data["billing_amount"] = valueOr(data, "total_amount", 0.0)
	}
	return data, nil
}

var workflowContexts = map[string]string{
	"invoice":       "invoice_lifecycle",
	"payment":       "payment_processing",
	"journal_entry": "accounting_operations",
}

func shapeWorkflow(ev *event.Event, data map[string]any) (map[string]any, error) {
	data["trigger_data"] = map[string]any{
		"object_type": ev.EntityType,
		"object_id":   ev.EntityID,
		"action":      string(ev.Action),
		"timestamp":   ev.Timestamp.UTC().Format(time.RFC3339Nano),
		"priority":    ev.Priority,
	}
	if wc, ok := workflowContexts[ev.EntityType]; ok {
		data["workflow_context"] = wc
	}
	return data, nil
}

func valueOr(data map[string]any, key string, def any) any {
	if v, ok := data[key]; ok && v != nil {
		return v
	}
	return def
}
