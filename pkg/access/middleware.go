package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/tenantguard/pkg/requestid"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

// Option configures the access middleware.
type Option func(*options)

type options struct {
	tenants         TenantResolver
	allowPrivileged bool
	provider        tenant.Provider
	skipPaths       []string
	onError         ErrorHandler
	log             *slog.Logger
}

// WithTenantResolver sets how the requested tenant is read from the request.
// Defaults to the X-Tenant-ID header.
func WithTenantResolver(r TenantResolver) Option {
	return func(o *options) {
		if r != nil {
			o.tenants = r
		}
	}
}

// WithAllowPrivileged lets privileged principals act as tenants they are not
// explicitly granted and marks their scope as privileged, which the bypass
// runner requires. Disabled by default.
func WithAllowPrivileged(allow bool) Option {
	return func(o *options) { o.allowPrivileged = allow }
}

// WithTenantProvider checks that the requested tenant exists and is active.
func WithTenantProvider(p tenant.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithSkipPaths lets requests through without a tenant scope. A trailing "*"
// matches by prefix. Handlers behind a skipped path cannot use scoped data access.
func WithSkipPaths(paths ...string) Option {
	return func(o *options) { o.skipPaths = append(o.skipPaths, paths...) }
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		if h != nil {
			o.onError = h
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Middleware authenticates the request, resolves the requested tenant,
// checks the principal's entitlement and installs the tenant scope for the
// rest of the chain. The scope is released when the handler returns, panics
// or is abandoned, so nothing derived from the request can act as the tenant
// afterwards. It panics when identity is nil.
func Middleware(identity IdentityResolver, opts ...Option) func(http.Handler) http.Handler {
	if identity == nil {
		panic("access: identity resolver cannot be nil")
	}
	o := options{
		tenants: HeaderResolver(DefaultTenantHeader),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.onError == nil {
		o.onError = DefaultErrorHandler(o.log)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if o.skipped(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, release, err := o.establish(r, identity)
			if err != nil {
				o.onError(w, r, err)
				return
			}
			defer release()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (o *options) skipped(path string) bool {
	for _, p := range o.skipPaths {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

// establish runs the access decision. Business code is reached only when it
// returns a scoped context.
func (o *options) establish(r *http.Request, identity IdentityResolver) (context.Context, func(), error) {
	ctx := r.Context()

	p, err := identity.Resolve(r)
	if err != nil {
		if !errors.Is(err, ErrUnauthenticated) {
			err = errors.Join(ErrUnauthenticated, err)
		}
		return nil, nil, err
	}
	if p == nil || p.ID == "" {
		return nil, nil, ErrUnauthenticated
	}

	requested, err := o.tenants(r)
	if err != nil {
		return nil, nil, err
	}
	if requested == "" {
		requested = p.DefaultTenant
	}
	if requested == "" {
		return nil, nil, tenant.ErrContextNotSet
	}

	privileged := p.Privileged && o.allowPrivileged
	if !p.Entitled(requested) && !privileged {
		o.log.WarnContext(ctx, "access: tenant not granted",
			slog.String("principal_id", p.ID),
			slog.String("requested_tenant_id", requested),
		)
		return nil, nil, ErrUnauthorizedTenantAccess
	}

	if o.provider != nil {
		t, err := o.provider.GetByID(ctx, requested)
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			return nil, nil, ErrUnauthorizedTenantAccess
		case err != nil:
			return nil, nil, fmt.Errorf("access: load tenant %q: %w", requested, err)
		case t == nil:
			return nil, nil, ErrUnauthorizedTenantAccess
		case !t.Active():
			return nil, nil, tenant.ErrTenantSuspended
		}
	}

	return tenant.Begin(ctx, requested,
		tenant.WithPrivileged(privileged),
		tenant.WithPrincipal(p.ID),
		tenant.WithRequestID(requestid.FromContext(ctx)),
	)
}
