package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

const (
	privilegedOn  = "on"
	privilegedOff = "off"
)

// Identity is the tenant binding of a database session as the row policies see it.
// The zero value is the denying state.
type Identity struct {
	TenantID   string
	Privileged bool
}

// IdentityFromContext maps the tenant scope of ctx to a session binding.
// A privileged scope only reaches the database as privileged once it has
// been elevated by the bypass path; otherwise it is bound like any tenant.
func IdentityFromContext(ctx context.Context) Identity {
	s, ok := tenant.Get(ctx)
	if !ok {
		return Identity{}
	}
	return Identity{TenantID: s.TenantID, Privileged: s.Bypass}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Binder owns the tenant marker of pooled connections. It is the only
// component that writes the session settings: on every checkout it binds the
// identity of the acquiring context, on every checkin it resets to the
// denying state before the connection becomes available again.
type Binder struct {
	cfg BinderConfig
	log *slog.Logger
}

// NewBinder creates a binder. Empty settings fall back to DefaultBinderConfig.
func NewBinder(cfg BinderConfig, log *slog.Logger) *Binder {
	def := DefaultBinderConfig()
	if cfg.TenantSetting == "" {
		cfg.TenantSetting = def.TenantSetting
	}
	if cfg.PrivilegedSetting == "" {
		cfg.PrivilegedSetting = def.PrivilegedSetting
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Binder{cfg: cfg, log: log}
}

// Config returns the effective binder configuration.
func (b *Binder) Config() BinderConfig { return b.cfg }

// Configure installs the checkout and checkin hooks on a pool config,
// chaining any hooks already present.
func (b *Binder) Configure(cfg *pgxpool.Config) {
	prevBefore := cfg.BeforeAcquire
	cfg.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		if prevBefore != nil && !prevBefore(ctx, conn) {
			return false
		}
		return b.beforeAcquire(ctx, conn)
	}

	prevAfter := cfg.AfterRelease
	cfg.AfterRelease = func(conn *pgx.Conn) bool {
		if prevAfter != nil && !prevAfter(conn) {
			return false
		}
		return b.afterRelease(conn)
	}
}

// beforeAcquire binds the connection. Returning false makes the pool destroy
// the connection and try another, so a connection whose binding is unknown
// is never handed out.
func (b *Binder) beforeAcquire(ctx context.Context, conn execer) bool {
	if err := b.Bind(ctx, conn, IdentityFromContext(ctx)); err != nil {
		b.log.ErrorContext(ctx, "pg: binding tenant on checkout failed, discarding connection", slog.Any("error", err))
		return false
	}
	return true
}

// afterRelease runs on checkin with its own timeout so that a cancelled or
// timed-out request still resets the connection it used.
func (b *Binder) afterRelease(conn execer) bool {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ResetTimeout)
	defer cancel()

	if err := b.Reset(ctx, conn); err != nil {
		b.log.ErrorContext(ctx, "pg: resetting tenant on checkin failed, discarding connection", slog.Any("error", err))
		return false
	}
	return true
}

// Bind writes id into the session settings of conn.
func (b *Binder) Bind(ctx context.Context, conn execer, id Identity) error {
	privileged := privilegedOff
	if id.Privileged {
		privileged = privilegedOn
	}
	if _, err := conn.Exec(ctx,
		"SELECT set_config($1, $2, false), set_config($3, $4, false)",
		b.cfg.TenantSetting, id.TenantID, b.cfg.PrivilegedSetting, privileged,
	); err != nil {
		return errors.Join(ErrBindFailed, err)
	}
	return nil
}

// Reset puts conn back into the denying state.
func (b *Binder) Reset(ctx context.Context, conn execer) error {
	if _, err := conn.Exec(ctx,
		"SELECT set_config($1, '', false), set_config($2, $3, false)",
		b.cfg.TenantSetting, b.cfg.PrivilegedSetting, privilegedOff,
	); err != nil {
		return errors.Join(ErrResetFailed, err)
	}
	return nil
}

// Current reads the binding of a session back from the database.
func (b *Binder) Current(ctx context.Context, conn rowQuerier) (Identity, error) {
	var tenantID, privileged *string
	err := conn.QueryRow(ctx,
		"SELECT current_setting($1, true), current_setting($2, true)",
		b.cfg.TenantSetting, b.cfg.PrivilegedSetting,
	).Scan(&tenantID, &privileged)
	if err != nil {
		return Identity{}, fmt.Errorf("pg: read session binding: %w", err)
	}

	var id Identity
	if tenantID != nil {
		id.TenantID = *tenantID
	}
	id.Privileged = privileged != nil && *privileged == privilegedOn
	return id, nil
}

// WithConn runs fn on a connection checked out for ctx, after confirming the
// session carries the identity of ctx. The connection is released (and reset
// by the checkin hook) on every exit path, including panics and cancellation.
func (b *Binder) WithConn(ctx context.Context, pool *pgxpool.Pool, fn func(*pgxpool.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	want := IdentityFromContext(ctx)
	got, err := b.Current(ctx, conn)
	if err != nil {
		return err
	}
	if got != want {
		// Destroy rather than release: this connection's state is untrusted.
		_ = conn.Conn().Close(context.WithoutCancel(ctx))
		return fmt.Errorf("%w: bound %q, expected %q", ErrIdentityMismatch, got.TenantID, want.TenantID)
	}

	return fn(conn)
}
