package tenant

import "errors"

var (
	// ErrContextNotSet is returned when tenant data is accessed without an
	// established tenant scope. It is never resolved by falling back to a default.
	ErrContextNotSet = errors.New("tenant context not set")

	// ErrInvalidTenantID is returned when a scope is created with an empty tenant id.
	ErrInvalidTenantID = errors.New("invalid tenant identifier")

	// ErrNotPrivileged is returned when elevation is requested by a non-privileged scope.
	ErrNotPrivileged = errors.New("tenant scope is not privileged")

	// ErrTenantNotFound is returned when a tenant cannot be found.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantSuspended is returned when trying to use a suspended tenant.
	ErrTenantSuspended = errors.New("tenant is suspended")

	// ErrCacheFailure is returned when the tenant cache backend fails.
	ErrCacheFailure = errors.New("tenant cache failure")
)
