// ABOUTME: Store interface and data types for the persisted tenant registry.
// ABOUTME: Defines the Tenant record and the operations the gateway needs.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested tenant does not exist.
var ErrNotFound = errors.New("not found")

// Tenant is one registered tenant. Registration means a /connect was issued
// at some point; the gateway restarts registered tenants on boot since
// their transport credentials are already durable on disk.
type Tenant struct {
	ID          string
	RegisteredAt time.Time
	LastSeenAt   time.Time
}

// Store is the persistence interface for the tenant registry.
type Store interface {
	// SaveTenant registers a tenant or refreshes its last-seen timestamp.
	SaveTenant(ctx context.Context, tenantID string) error

	// GetTenant returns a tenant record, or ErrNotFound.
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)

	// ListTenants returns all registered tenants ordered by registration.
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// DeleteTenant removes a tenant. Deleting an unknown tenant is a no-op.
	DeleteTenant(ctx context.Context, tenantID string) error

	// Close releases the underlying database handle.
	Close() error
}
