// Package finance holds the originating side of the sync: the finance
// records whose changes are pushed to other modules.
package finance

import (
	"time"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/event"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/producer"
)

// Entity type names as they appear on sync events.
const (
	TypeInvoice      = "invoice"
	TypePayment      = "payment"
	TypeJournalEntry = "journal_entry"
)

// StatusApproved is the only journal entry status that is synced.
const StatusApproved = "APPROVED"

const dateLayout = "2006-01-02"

// Record is an entity the Store can hold.
type Record interface {
	producer.Entity
	stamp(created, updated time.Time)
	createdAt() time.Time
	clone() Record
}

type LineItem struct {
	ProductID   string  `json:"product_id"`
	Quantity    float64 `json:"quantity"`
	TotalAmount float64 `json:"total_amount"`
}

type Invoice struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	CustomerID  string     `json:"customer_id"`
	Number      string     `json:"number"`
	TotalAmount float64    `json:"total_amount"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	LineItems   []LineItem `json:"line_items,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (i *Invoice) SyncRef() producer.Ref {
	return producer.Ref{TenantID: i.TenantID, EntityType: TypeInvoice, EntityID: i.ID}
}

func (i *Invoice) SyncPayload() event.Payload {
	p := event.Payload{
		event.F("invoice_id", i.ID),
		event.F("customer_id", i.CustomerID),
		event.F("number", i.Number),
		event.F("total_amount", i.TotalAmount),
		event.F("status", i.Status),
		event.F("due_date", formatDate(i.DueDate)),
		event.F("created_at", formatTime(i.CreatedAt)),
		event.F("updated_at", formatTime(i.UpdatedAt)),
	}
	if len(i.LineItems) > 0 {
		items := make([]map[string]any, 0, len(i.LineItems))
		for _, li := range i.LineItems {
			items = append(items, map[string]any{
				"product_id":   li.ProductID,
				"quantity":     li.Quantity,
				"total_amount": li.TotalAmount,
			})
		}
		p = append(p, event.F("line_items", items))
	}
	return p
}

// DeletePayload carries just enough for consumers to find their copy.
func (i *Invoice) DeletePayload() event.Payload {
	return event.Payload{
		event.F("invoice_id", i.ID),
		event.F("customer_id", i.CustomerID),
		event.F("number", i.Number),
	}
}

func (i *Invoice) stamp(created, updated time.Time) { i.CreatedAt, i.UpdatedAt = created, updated }
func (i *Invoice) createdAt() time.Time             { return i.CreatedAt }

func (i *Invoice) clone() Record {
	cp := *i
	cp.LineItems = append([]LineItem(nil), i.LineItems...)
	if i.DueDate != nil {
		d := *i.DueDate
		cp.DueDate = &d
	}
	return &cp
}

type Payment struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Amount        float64    `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
	Reference     string     `json:"reference"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (p *Payment) SyncRef() producer.Ref {
	return producer.Ref{TenantID: p.TenantID, EntityType: TypePayment, EntityID: p.ID}
}

func (p *Payment) SyncPayload() event.Payload {
	return event.Payload{
		event.F("payment_id", p.ID),
		event.F("amount", p.Amount),
		event.F("payment_method", p.PaymentMethod),
		event.F("status", p.Status),
		event.F("payment_date", formatDate(p.PaymentDate)),
		event.F("reference", p.Reference),
		event.F("created_at", formatTime(p.CreatedAt)),
		event.F("updated_at", formatTime(p.UpdatedAt)),
	}
}

func (p *Payment) stamp(created, updated time.Time) { p.CreatedAt, p.UpdatedAt = created, updated }
func (p *Payment) createdAt() time.Time             { return p.CreatedAt }

func (p *Payment) clone() Record {
	cp := *p
	if p.PaymentDate != nil {
		d := *p.PaymentDate
		cp.PaymentDate = &d
	}
	return &cp
}

type JournalEntry struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	EntryDate   time.Time `json:"entry_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (j *JournalEntry) SyncRef() producer.Ref {
	return producer.Ref{TenantID: j.TenantID, EntityType: TypeJournalEntry, EntityID: j.ID}
}

func (j *JournalEntry) SyncPayload() event.Payload {
	return event.Payload{
		event.F("journal_entry_id", j.ID),
		event.F("reference", j.Reference),
		event.F("description", j.Description),
		event.F("entry_date", j.EntryDate.Format(dateLayout)),
		event.F("status", j.Status),
		event.F("created_at", formatTime(j.CreatedAt)),
		event.F("updated_at", formatTime(j.UpdatedAt)),
	}
}

// ShouldSync holds back draft and posted-but-unapproved entries.
func (j *JournalEntry) ShouldSync() bool { return j.Status == StatusApproved }

func (j *JournalEntry) stamp(created, updated time.Time) { j.CreatedAt, j.UpdatedAt = created, updated }
func (j *JournalEntry) createdAt() time.Time             { return j.CreatedAt }

func (j *JournalEntry) clone() Record {
	cp := *j
	return &cp
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
