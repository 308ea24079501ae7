package access

import (
	"net/http"
	"slices"
)

// Principal is the authenticated caller and its tenant entitlements, as
// asserted by the identity provider.
type Principal struct {
	ID string
	// Tenants lists the tenants the principal may act as.
	Tenants []string
	// DefaultTenant is used when the request names no tenant.
	DefaultTenant string
	// Privileged principals may act as any tenant and request the bypass
	// path, when the middleware permits it.
	Privileged bool
}

// Entitled reports whether the principal is granted tenantID.
func (p *Principal) Entitled(tenantID string) bool {
	return p != nil && tenantID != "" && slices.Contains(p.Tenants, tenantID)
}

// IdentityResolver authenticates a request. Credential verification lives
// with the identity provider; implementations return ErrUnauthenticated when
// the request carries no acceptable credential.
type IdentityResolver interface {
	Resolve(r *http.Request) (*Principal, error)
}

// IdentityResolverFunc adapts a function to IdentityResolver.
type IdentityResolverFunc func(r *http.Request) (*Principal, error)

func (f IdentityResolverFunc) Resolve(r *http.Request) (*Principal, error) {
	return f(r)
}
