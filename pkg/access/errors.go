package access

import "errors"

var (
	// ErrUnauthenticated is returned when the request carries no valid credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorizedTenantAccess is returned when the principal is not
	// entitled to the requested tenant, or the tenant is unknown.
	ErrUnauthorizedTenantAccess = errors.New("unauthorized tenant access")

	// ErrInvalidIdentifier is returned when a tenant identifier in the request is malformed.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	ErrMissingSecret = errors.New("jwt signing secret is required")
	ErrInvalidClaims = errors.New("invalid token claims")
)
