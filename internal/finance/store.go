package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/producer"
)

var (
	ErrNotFound    = errors.New("entity not found")
	ErrUnknownType = errors.New("unknown entity type")
)

// SaveHook runs after a record is committed.
type SaveHook func(ctx context.Context, e producer.Entity, created bool)

// DeleteHook runs after a record is removed.
type DeleteHook func(ctx context.Context, e producer.Entity)

type recordKey struct {
	tenant, typ, id string
}

// Store is an in-memory record store shared by all tenants.
type Store struct {
	mu        sync.RWMutex
	records   map[recordKey]Record
	onSaved   []SaveHook
	onDeleted []DeleteHook
	now       func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[recordKey]Record), now: time.Now}
}

// OnSaved registers h to run after every Save.
func (s *Store) OnSaved(h SaveHook) {
	s.mu.Lock()
	s.onSaved = append(s.onSaved, h)
	s.mu.Unlock()
}

// OnDeleted registers h to run after every successful Delete.
func (s *Store) OnDeleted(h DeleteHook) {
	s.mu.Lock()
	s.onDeleted = append(s.onDeleted, h)
	s.mu.Unlock()
}

// Save inserts or replaces r and reports whether it was new. Hooks see a
// copy of the committed record.
func (s *Store) Save(ctx context.Context, r Record) (bool, error) {
	ref := r.SyncRef()
	if ref.TenantID == "" || ref.EntityID == "" {
		return false, fmt.Errorf("save %s: tenant_id and id are required", ref.EntityType)
	}
	k := recordKey{ref.TenantID, ref.EntityType, ref.EntityID}

	s.mu.Lock()
	prev, exists := s.records[k]
	stored := r.clone()
	now := s.now()
	createdAt := now
	if exists {
		createdAt = prev.createdAt()
	}
	stored.stamp(createdAt, now)
	s.records[k] = stored
	hooks := append([]SaveHook(nil), s.onSaved...)
	s.mu.Unlock()

	for _, h := range hooks {
		h(ctx, stored.clone(), !exists)
	}
	return !exists, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, tenantID, entityType, entityID string) error {
	k := recordKey{tenantID, entityType, entityID}
	s.mu.Lock()
	r, ok := s.records[k]
	if ok {
		delete(s.records, k)
	}
	hooks := append([]DeleteHook(nil), s.onDeleted...)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s#%s: %w", entityType, entityID, ErrNotFound)
	}
	for _, h := range hooks {
		h(ctx, r)
	}
	return nil
}

// Lookup returns a copy of a stored record.
func (s *Store) Lookup(_ context.Context, tenantID, entityType, entityID string) (producer.Entity, error) {
	s.mu.RLock()
	r, ok := s.records[recordKey{tenantID, entityType, entityID}]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s#%s: %w", entityType, entityID, ErrNotFound)
	}
	return r.clone(), nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Decode parses a JSON record of the given entity type for tenantID. A
// record naming a different tenant is rejected.
func Decode(tenantID, entityType string, data []byte) (Record, error) {
	var (
		r      Record
		tenant *string
	)
	switch entityType {
	case TypeInvoice:
		v := &Invoice{}
		r, tenant = v, &v.TenantID
	case TypePayment:
		v := &Payment{}
		r, tenant = v, &v.TenantID
	case TypeJournalEntry:
		v := &JournalEntry{}
		r, tenant = v, &v.TenantID
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, entityType)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entityType, err)
	}
	switch *tenant {
	case "":
		*tenant = tenantID
	case tenantID:
	default:
		return nil, fmt.Errorf("decode %s: tenant_id %q does not match %q", entityType, *tenant, tenantID)
	}
	return r, nil
}
