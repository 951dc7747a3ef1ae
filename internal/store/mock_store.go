// ABOUTME: Mock Store implementation for testing.
// ABOUTME: Allows tests to run without SQLite.

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{tenants: make(map[string]*Tenant)}
}

// SaveTenant registers a tenant or refreshes its last-seen timestamp.
func (m *MockStore) SaveTenant(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if t, ok := m.tenants[tenantID]; ok {
		t.LastSeenAt = now
		return nil
	}
	m.tenants[tenantID] = &Tenant{ID: tenantID, RegisteredAt: now, LastSeenAt: now}
	return nil
}

// GetTenant returns a tenant record, or ErrNotFound.
func (m *MockStore) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ListTenants returns all registered tenants ordered by registration.
func (m *MockStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

// DeleteTenant removes a tenant.
func (m *MockStore) DeleteTenant(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tenants, tenantID)
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
