package tenant

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
)

// Scope is the request-scoped tenant context: which tenant the current unit
// of work acts as and whether it carries cross-tenant privilege.
// A Scope is a value; contexts derived from a request receive copies.
type Scope struct {
	TenantID    string
	Privileged  bool
	Bypass      bool
	RequestID   string
	PrincipalID string
}

// lease ties every context derived from one request to a single lifetime.
// It only ever transitions from live to released.
type lease struct {
	released atomic.Bool
}

func (l *lease) release() { l.released.Store(true) }

func (l *lease) live() bool { return !l.released.Load() }

type entry struct {
	scope Scope
	lease *lease
}

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// Option configures a Scope when it is created.
type Option func(*Scope)

// WithPrivileged marks the scope as allowed to request the bypass path.
func WithPrivileged(privileged bool) Option {
	return func(s *Scope) { s.Privileged = privileged }
}

// WithRequestID records the request correlation id for audit records.
func WithRequestID(id string) Option {
	return func(s *Scope) { s.RequestID = id }
}

// WithPrincipal records the authenticated principal acting in the scope.
func WithPrincipal(id string) Option {
	return func(s *Scope) { s.PrincipalID = id }
}

func newScope(tenantID string, opts []Option) (Scope, error) {
	s := Scope{TenantID: strings.TrimSpace(tenantID)}
	for _, opt := range opts {
		opt(&s)
	}
	if s.TenantID == "" && !s.Privileged {
		return Scope{}, ErrInvalidTenantID
	}
	return s, nil
}

func lookup(ctx context.Context) (*entry, bool) {
	if ctx == nil {
		return nil, false
	}
	e, ok := ctx.Value(contextKey{}).(*entry)
	return e, ok && e != nil
}

// Set returns a context carrying the tenant scope. If ctx already belongs to
// a request lease the new scope shares it, so clearing the request also
// clears every scope set beneath it.
func Set(ctx context.Context, tenantID string, opts ...Option) (context.Context, error) {
	s, err := newScope(tenantID, opts)
	if err != nil {
		return ctx, err
	}
	l := &lease{}
	if parent, ok := lookup(ctx); ok {
		l = parent.lease
	}
	return context.WithValue(ctx, contextKey{}, &entry{scope: s, lease: l}), nil
}

// Begin starts a new request lease with the given scope. The returned
// function clears it and must be deferred by the caller.
func Begin(ctx context.Context, tenantID string, opts ...Option) (context.Context, func(), error) {
	s, err := newScope(tenantID, opts)
	if err != nil {
		return ctx, func() {}, err
	}
	l := &lease{}
	return context.WithValue(ctx, contextKey{}, &entry{scope: s, lease: l}), l.release, nil
}

// Get returns a copy of the active scope. It reports false when no scope
// was set or the request that owns it has been cleared.
func Get(ctx context.Context) (Scope, bool) {
	e, ok := lookup(ctx)
	if !ok || !e.lease.live() {
		return Scope{}, false
	}
	return e.scope, true
}

// Require returns the active tenant id or ErrContextNotSet.
func Require(ctx context.Context) (string, error) {
	s, ok := Get(ctx)
	if !ok || s.TenantID == "" {
		return "", ErrContextNotSet
	}
	return s.TenantID, nil
}

// Clear releases the request lease of ctx. Safe to call any number of times
// and on contexts without a scope.
func Clear(ctx context.Context) {
	if e, ok := lookup(ctx); ok {
		e.lease.release()
	}
}

// IsBypass reports whether ctx runs inside the audited cross-tenant path.
func IsBypass(ctx context.Context) bool {
	s, ok := Get(ctx)
	return ok && s.Bypass
}

// Elevate returns a context whose scope skips application-level tenant
// filtering. Only the bypass runner calls it; it requires a privileged scope.
func Elevate(ctx context.Context) (context.Context, error) {
	e, ok := lookup(ctx)
	if !ok || !e.lease.live() {
		return ctx, ErrContextNotSet
	}
	if !e.scope.Privileged {
		return ctx, ErrNotPrivileged
	}
	s := e.scope
	s.Bypass = true
	return context.WithValue(ctx, contextKey{}, &entry{scope: s, lease: e.lease}), nil
}

// Detach copies the active scope onto a fresh lease and a context that is
// not cancelled with the request, for background work that outlives it.
// Elevation is not carried over. The returned function must be called when
// the background work finishes.
func Detach(ctx context.Context) (context.Context, func(), error) {
	s, ok := Get(ctx)
	if !ok {
		return ctx, func() {}, ErrContextNotSet
	}
	s.Bypass = false
	l := &lease{}
	detached := context.WithValue(context.WithoutCancel(ctx), contextKey{}, &entry{scope: s, lease: l})
	return detached, l.release, nil
}

// IDExtractor returns the tenant id of the active scope, for audit and metrics.
func IDExtractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		s, ok := Get(ctx)
		if !ok || s.TenantID == "" {
			return "", false
		}
		return s.TenantID, true
	}
}

// PrincipalExtractor returns the principal acting in the active scope.
func PrincipalExtractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		s, ok := Get(ctx)
		if !ok || s.PrincipalID == "" {
			return "", false
		}
		return s.PrincipalID, true
	}
}

// RequestIDExtractor returns the request id recorded on the active scope.
func RequestIDExtractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		s, ok := Get(ctx)
		if !ok || s.RequestID == "" {
			return "", false
		}
		return s.RequestID, true
	}
}

// LoggerExtractor returns a function that enriches log records with the tenant scope.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		s, ok := Get(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		attrs := []slog.Attr{slog.String("id", s.TenantID)}
		if s.Privileged {
			attrs = append(attrs, slog.Bool("privileged", true))
		}
		if s.Bypass {
			attrs = append(attrs, slog.Bool("bypass", true))
		}
		return slog.Attr{Key: "tenant", Value: slog.GroupValue(attrs...)}, true
	}
}
