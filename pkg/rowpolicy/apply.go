package rowpolicy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs DDL. *pgxpool.Pool, *pgx.Conn and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Querier reads catalog rows. *pgxpool.Pool, *pgx.Conn and pgx.Tx satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type applyOptions struct {
	tenantSetting     string
	privilegedSetting string
}

// ApplyOption configures Apply.
type ApplyOption func(*applyOptions)

// WithSettings redefines the helper functions to read the given session
// settings. Use it when the binder is configured with non-default names.
func WithSettings(tenantSetting, privilegedSetting string) ApplyOption {
	return func(o *applyOptions) {
		o.tenantSetting = tenantSetting
		o.privilegedSetting = privilegedSetting
	}
}

// Apply installs the policies. Run it inside a transaction to make the
// change atomic; pgx.Tx satisfies Execer.
func Apply(ctx context.Context, db Execer, policies []Policy, opts ...ApplyOption) error {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	var stmts []string
	if o.tenantSetting != "" || o.privilegedSetting != "" {
		fn, err := FunctionStatements(o.tenantSetting, o.privilegedSetting)
		if err != nil {
			return err
		}
		stmts = append(stmts, fn...)
	}
	for _, p := range policies {
		if err := p.validate(); err != nil {
			return err
		}
		stmts = append(stmts, p.Statements()...)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Join(ErrApplyFailed, fmt.Errorf("%s: %w", stmt, err))
		}
	}
	return nil
}

// Status is the row security state of one table.
type Status struct {
	Table    string
	Enabled  bool
	Forced   bool
	Policies int
}

// Protected reports whether the table is isolated even from its owner.
func (s Status) Protected() bool {
	return s.Enabled && s.Forced && s.Policies > 0
}

// Inspect reads the row security state of table from the catalog.
func Inspect(ctx context.Context, db Querier, table string) (Status, error) {
	st := Status{Table: table}
	var found bool
	err := db.QueryRow(ctx, `
		SELECT c.oid IS NOT NULL,
		       COALESCE(c.relrowsecurity, false),
		       COALESCE(c.relforcerowsecurity, false),
		       (SELECT count(*) FROM pg_policy p WHERE p.polrelid = c.oid)
		FROM (SELECT to_regclass($1) AS oid) r
		LEFT JOIN pg_class c ON c.oid = r.oid`,
		table,
	).Scan(&found, &st.Enabled, &st.Forced, &st.Policies)
	if err != nil {
		return st, fmt.Errorf("rowpolicy: inspect %s: %w", table, err)
	}
	if !found {
		return st, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return st, nil
}

// Verify checks that every table has row security enabled and forced with
// at least one policy. All failing tables are reported.
func Verify(ctx context.Context, db Querier, tables ...string) error {
	var errs []error
	for _, table := range tables {
		st, err := Inspect(ctx, db, table)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !st.Protected() {
			errs = append(errs, fmt.Errorf("%w: %s (enabled=%t forced=%t policies=%d)",
				ErrPolicyMissing, table, st.Enabled, st.Forced, st.Policies))
		}
	}
	return errors.Join(errs...)
}
