// Package tenant holds the request-scoped tenant context that every other
// isolation component reads.
//
// A Scope (tenant id, privilege flag, request id, principal) travels on a
// context.Context. Contexts are immutable, so goroutines forked from a
// request see a snapshot of the scope, and setting a scope in one branch
// never affects a sibling branch.
//
// Every scope created by Begin belongs to a request lease. Clearing the lease
// (the release function returned by Begin, or Clear) makes Get and Require
// fail on every context derived from that request, including goroutines that
// still hold one after the request finished. Access is fail-closed: Require
// returns ErrContextNotSet and never substitutes a default tenant.
//
// # Usage
//
//	ctx, release, err := tenant.Begin(r.Context(), "store-42", tenant.WithRequestID(id))
//	if err != nil {
//		return err
//	}
//	defer release()
//
//	tenantID, err := tenant.Require(ctx)
//
// Background jobs that must outlive the request call Detach, which copies the
// scope onto a fresh lease that the job releases itself.
//
// # Tenant records
//
// Provider loads Tenant records (status active or suspended) from the
// provisioning system. CachedProvider fronts it with a MemoryCache
// or a RedisCache.
package tenant
