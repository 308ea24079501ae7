package tenant

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// DefaultTenantsTable is the registry created by the bundled migrations.
const DefaultTenantsTable = "tenants"

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGProvider reads tenants from the Postgres registry table.
type PGProvider struct {
	db      pgQuerier
	table   string
	builder sq.StatementBuilderType
}

// NewPGProvider creates a provider over db, a pool or transaction. An empty
// table selects DefaultTenantsTable.
func NewPGProvider(db pgQuerier, table string) *PGProvider {
	if db == nil {
		panic("tenant: database cannot be nil")
	}
	if table == "" {
		table = DefaultTenantsTable
	}
	return &PGProvider{
		db:      db,
		table:   table,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (p *PGProvider) GetByID(ctx context.Context, id string) (*Tenant, error) {
	if id == "" {
		return nil, ErrTenantNotFound
	}
	tenants, err := p.query(ctx, p.selectTenants().Where(sq.Eq{"id": id}).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return &tenants[0], nil
}

// ListActive returns the ids of all active tenants, ordered by id. It feeds
// cross-tenant fan-out jobs.
func (p *PGProvider) ListActive(ctx context.Context) ([]string, error) {
	tenants, err := p.query(ctx, p.selectTenants().Where(sq.Eq{"status": StatusActive}).OrderBy("id"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tenants))
	for i, t := range tenants {
		ids[i] = t.ID
	}
	return ids, nil
}

func (p *PGProvider) selectTenants() sq.SelectBuilder {
	return p.builder.Select("id", "name", "status", "created_at").From(p.table)
}

func (p *PGProvider) query(ctx context.Context, q sq.SelectBuilder) ([]Tenant, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("tenant: build query: %w", err)
	}
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tenant: query %s: %w", p.table, err)
	}
	tenants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tenant, error) {
		var t Tenant
		err := row.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt)
		return t, err
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant: scan %s: %w", p.table, err)
	}
	return tenants, nil
}
