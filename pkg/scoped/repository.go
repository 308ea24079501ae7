package scoped

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/tenantguard/pkg/alert"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

// Querier is the subset of pgx used by the repository. *pgxpool.Pool,
// *pgx.Conn and pgx.Tx satisfy it. Connections taken from a pool configured
// by pg.Binder are bound to the tenant of the context on checkout.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	alerter alert.Alerter
	log     *slog.Logger
}

// WithAlerter sets where isolation violations are reported.
// Defaults to a LogAlerter on the repository logger.
func WithAlerter(a alert.Alerter) Option {
	return func(o *options) {
		if a != nil {
			o.alerter = a
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

// Repository reads and writes one tenant-scoped table. Every operation
// requires a tenant scope on the context: reads, updates and deletes are
// restricted to the scope's tenant, inserts are stamped with it, and every
// row read back is checked against it.
type Repository[T any] struct {
	db      Querier
	table   Table
	alerter alert.Alerter
	builder sq.StatementBuilderType
}

// New creates a repository for rows scanned into T by column name
// (`db` struct tags). It panics on an invalid table definition.
func New[T any](db Querier, table Table, opts ...Option) *Repository[T] {
	if db == nil {
		panic("scoped: querier is required")
	}
	t, err := table.withDefaults()
	if err != nil {
		panic(err)
	}

	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.alerter == nil {
		o.alerter = alert.NewLogAlerter(o.log)
	}

	return &Repository[T]{
		db:      db,
		table:   t,
		alerter: o.alerter,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// WithQuerier returns a copy of the repository that runs on q, typically a
// transaction.
func (r *Repository[T]) WithQuerier(q Querier) *Repository[T] {
	cp := *r
	cp.db = q
	return &cp
}

// Table returns the effective table definition.
func (r *Repository[T]) Table() Table { return r.table }

// scope returns the active tenant scope or ErrContextNotSet. No I/O happens
// before this succeeds.
func (r *Repository[T]) scope(ctx context.Context) (tenant.Scope, error) {
	s, ok := tenant.Get(ctx)
	if !ok || (!s.Bypass && s.TenantID == "") {
		return tenant.Scope{}, tenant.ErrContextNotSet
	}
	return s, nil
}

// keyedScope resolves the scope for single-row operations. A nil key would
// widen the statement to every row the scope can see; it is refused with
// ErrKeyRequired before any statement is built.
func (r *Repository[T]) keyedScope(ctx context.Context, key any) (tenant.Scope, error) {
	s, err := r.scope(ctx)
	if err != nil {
		return s, err
	}
	if isNil(key) {
		return tenant.Scope{}, ErrKeyRequired
	}
	return s, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// predicate builds the WHERE clause: the tenant predicate unless the scope
// runs on the bypass path, the key if given, and each caller condition in its
// own parentheses so a disjunction cannot widen the tenant predicate.
func (r *Repository[T]) predicate(s tenant.Scope, key any, where []sq.Sqlizer) sq.Sqlizer {
	var parts sq.And
	if !s.Bypass {
		parts = append(parts, sq.Eq{r.table.TenantColumn: s.TenantID})
	}
	if key != nil {
		parts = append(parts, sq.Eq{r.table.KeyColumn: key})
	}
	for _, w := range where {
		if w != nil {
			parts = append(parts, sq.And{w})
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}

// Page narrows a list query.
type Page struct {
	Limit   uint64
	Offset  uint64
	OrderBy []string
}

// Find returns the row with the given key. A nil key is ErrKeyRequired.
func (r *Repository[T]) Find(ctx context.Context, key any) (T, error) {
	var zero T
	s, err := r.keyedScope(ctx, key)
	if err != nil {
		return zero, err
	}

	q := r.builder.Select(r.table.selectColumns()...).
		From(r.table.Name).
		Where(r.predicate(s, key, nil)).
		Limit(1)

	items, err := r.query(ctx, s, alert.OpFind, q)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

// List returns the rows matching where.
func (r *Repository[T]) List(ctx context.Context, where ...sq.Sqlizer) ([]T, error) {
	return r.ListPage(ctx, Page{}, where...)
}

// ListPage is List with ordering and pagination.
func (r *Repository[T]) ListPage(ctx context.Context, page Page, where ...sq.Sqlizer) ([]T, error) {
	s, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	q := r.builder.Select(r.table.selectColumns()...).From(r.table.Name)
	if p := r.predicate(s, nil, where); p != nil {
		q = q.Where(p)
	}
	if len(page.OrderBy) > 0 {
		q = q.OrderBy(page.OrderBy...)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}

	return r.query(ctx, s, alert.OpList, q)
}

// Count returns the number of rows matching where.
func (r *Repository[T]) Count(ctx context.Context, where ...sq.Sqlizer) (int64, error) {
	s, err := r.scope(ctx)
	if err != nil {
		return 0, err
	}

	q := r.builder.Select("count(*)").From(r.table.Name)
	if p := r.predicate(s, nil, where); p != nil {
		q = q.Where(p)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("scoped: build count %s: %w", r.table.Name, err)
	}

	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, r.wrap(ctx, s, alert.OpCount, err)
	}
	return n, nil
}

// Insert writes a row stamped with the scope's tenant and returns it as
// stored. A tenant value that disagrees with the scope is a violation. Under
// bypass the tenant cannot be inferred and must be given explicitly.
func (r *Repository[T]) Insert(ctx context.Context, values Values) (T, error) {
	var zero T
	s, err := r.scope(ctx)
	if err != nil {
		return zero, err
	}
	if len(values) == 0 {
		return zero, ErrNoValues
	}

	row := values.clone()
	var supplied []any
	for _, k := range r.table.tenantKeys(values) {
		supplied = append(supplied, row[k])
		delete(row, k)
	}

	if s.Bypass {
		if len(supplied) == 0 || tenantString(supplied[0]) == "" {
			return zero, ErrTenantRequired
		}
		for _, v := range supplied[1:] {
			if tenantString(v) != tenantString(supplied[0]) {
				return zero, r.violate(ctx, s, alert.Violation{
					Kind:        alert.KindTenantMismatch,
					Op:          alert.OpInsert,
					RowTenantID: tenantString(v),
					Err:         errors.New("conflicting tenant ids supplied"),
				})
			}
		}
		row[r.table.TenantColumn] = supplied[0]
	} else {
		for _, v := range supplied {
			if tenantString(v) != s.TenantID {
				return zero, r.violate(ctx, s, alert.Violation{
					Kind:        alert.KindTenantMismatch,
					Op:          alert.OpInsert,
					RowTenantID: tenantString(v),
					Err:         errors.New("supplied tenant id differs from scope"),
				})
			}
		}
		row[r.table.TenantColumn] = s.TenantID
	}

	q := r.builder.Insert(r.table.Name).
		SetMap(row).
		Suffix(r.returning())

	items, err := r.query(ctx, s, alert.OpInsert, q)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("scoped: insert into %s returned no row", r.table.Name)
	}
	return items[0], nil
}

// Update changes the row with the given key and returns it as stored. The
// tenant column is immutable.
func (r *Repository[T]) Update(ctx context.Context, key any, values Values) (T, error) {
	var zero T
	s, err := r.keyedScope(ctx, key)
	if err != nil {
		return zero, err
	}
	if len(values) == 0 {
		return zero, ErrNoValues
	}
	if keys := r.table.tenantKeys(values); len(keys) > 0 {
		return zero, r.violate(ctx, s, alert.Violation{
			Kind:        alert.KindTenantMismatch,
			Op:          alert.OpUpdate,
			RowTenantID: tenantString(values[keys[0]]),
			Err:         errors.New("tenant column is immutable"),
		})
	}

	q := r.builder.Update(r.table.Name).
		SetMap(values).
		Where(r.predicate(s, key, nil)).
		Suffix(r.returning())

	items, err := r.query(ctx, s, alert.OpUpdate, q)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

// Delete removes the row with the given key.
func (r *Repository[T]) Delete(ctx context.Context, key any) error {
	s, err := r.keyedScope(ctx, key)
	if err != nil {
		return err
	}

	query, args, err := r.builder.Delete(r.table.Name).
		Where(r.predicate(s, key, nil)).
		ToSql()
	if err != nil {
		return fmt.Errorf("scoped: build delete %s: %w", r.table.Name, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return r.wrap(ctx, s, alert.OpDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository[T]) returning() string {
	return "RETURNING " + strings.Join(r.table.selectColumns(), ", ")
}

// query runs q and scans the rows, verifying each row's tenant before it is
// decoded into T. A foreign row fails the whole call; no partial result is
// returned.
func (r *Repository[T]) query(ctx context.Context, s tenant.Scope, op alert.Op, q sq.Sqlizer) ([]T, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("scoped: build %s %s: %w", op, r.table.Name, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.wrap(ctx, s, op, err)
	}

	tenantIdx := -1
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		var zero T
		if !s.Bypass {
			if tenantIdx < 0 {
				tenantIdx = columnIndex(row.FieldDescriptions(), r.table.TenantColumn)
			}
			if tenantIdx < 0 {
				return zero, fmt.Errorf("%w: result has no %s column", ErrInvalidTable, r.table.TenantColumn)
			}
			vals, err := row.Values()
			if err != nil {
				return zero, err
			}
			if got := tenantString(vals[tenantIdx]); got != s.TenantID {
				return zero, r.violate(ctx, s, alert.Violation{
					Kind:        alert.KindForeignRow,
					Op:          op,
					RowTenantID: got,
					Err:         errors.New("row belongs to another tenant"),
				})
			}
		}
		return pgx.RowToStructByName[T](row)
	})
	if err != nil {
		var ve *ViolationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, r.wrap(ctx, s, op, err)
	}
	return items, nil
}

// wrap classifies a database error. Writes rejected by the row policy become
// violations; everything else is returned with context.
func (r *Repository[T]) wrap(ctx context.Context, s tenant.Scope, op alert.Op, err error) error {
	switch {
	case pg.IsRowSecurityViolation(err):
		return r.violate(ctx, s, alert.Violation{Kind: alert.KindRowPolicy, Op: op, Err: err})
	case pg.IsNotFoundError(err):
		return ErrNotFound
	default:
		return fmt.Errorf("scoped: %s %s: %w", op, r.table.Name, err)
	}
}

func (r *Repository[T]) violate(ctx context.Context, s tenant.Scope, v alert.Violation) *ViolationError {
	v.Table = r.table.Name
	v.TenantID = s.TenantID
	v.RequestID = s.RequestID
	r.alerter.Alert(ctx, &v)
	return &ViolationError{Violation: v}
}

func columnIndex(fields []pgconn.FieldDescription, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
