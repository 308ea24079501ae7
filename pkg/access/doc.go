// Package access is the HTTP entry point of tenant isolation. Its middleware
// authenticates the caller through an IdentityResolver, determines the
// requested tenant, checks that the principal is entitled to it and installs
// the tenant scope that the scoped data-access layer and the connection
// binder rely on. The scope is released on every exit path of the request.
//
// # Usage
//
//	identity, err := access.NewJWTResolver(cfg.JWTSecret, access.WithIssuer("https://id.example.com"))
//	if err != nil {
//		return err
//	}
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//	r.Use(access.Recoverer(log))
//	r.Route("/stores/{store}", func(r chi.Router) {
//		r.Use(access.Middleware(identity,
//			access.WithTenantResolver(access.URLParamResolver("store")),
//			access.WithTenantProvider(tenants),
//			access.WithLogger(log),
//		))
//		r.Get("/orders", listOrders)
//	})
//
// The requested tenant comes from the configured TenantResolver and falls
// back to the principal's default tenant. When neither names a tenant the
// request is rejected; there is no implicit tenant.
//
// Privileged principals act outside their grants, and carry the privilege
// the bypass runner checks, only when WithAllowPrivileged(true) is set.
//
// # Errors
//
// DefaultErrorHandler and WriteError map errors to status codes:
// ErrUnauthenticated and tenant.ErrContextNotSet to 401,
// ErrUnauthorizedTenantAccess and tenant.ErrTenantSuspended to 403,
// ErrInvalidIdentifier to 400. Isolation violations and every other failure
// become an opaque 500 with the detail logged.
package access
