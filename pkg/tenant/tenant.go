package tenant

import (
	"context"
	"time"
)

// Status is the lifecycle state of a tenant account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant represents an independent store account. It is owned by the
// provisioning system and read-only to the isolation core.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the tenant may be acted upon.
func (t *Tenant) Active() bool {
	return t != nil && t.Status == StatusActive
}

// Provider loads tenant records from a data source.
type Provider interface {
	// GetByID returns ErrTenantNotFound if no tenant matches the identifier.
	GetByID(ctx context.Context, id string) (*Tenant, error)
}

// ProviderFunc is an adapter to allow the use of ordinary functions as Providers.
type ProviderFunc func(ctx context.Context, id string) (*Tenant, error)

// GetByID calls f(ctx, id).
func (f ProviderFunc) GetByID(ctx context.Context, id string) (*Tenant, error) {
	return f(ctx, id)
}
