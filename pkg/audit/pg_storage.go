package audit

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgTable = "audit_records"

var pgColumns = []string{
	"id", "actor", "tenant_id_claimed", "bypass_used", "request_id",
	"action", "reason", "result", "error", "metadata", "created_at",
}

// pgDB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStorage stores records in the audit_records table created by the bundled
// migrations. The table is append-only: a trigger rejects UPDATE, DELETE and
// TRUNCATE.
type PGStorage struct {
	db      pgDB
	builder sq.StatementBuilderType
}

func NewPGStorage(db pgDB) *PGStorage {
	if db == nil {
		panic("audit: database cannot be nil")
	}
	return &PGStorage{db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (s *PGStorage) Store(ctx context.Context, record Record) error {
	return s.StoreBatch(ctx, []Record{record})
}

// StoreBatch inserts all records in one statement, so they are stored
// together or not at all.
func (s *PGStorage) StoreBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	q := s.builder.Insert(pgTable).Columns(pgColumns...)
	for _, r := range records {
		q = q.Values(r.ID, r.Actor, r.TenantIDClaimed, r.BypassUsed, r.RequestID,
			r.Action, r.Reason, string(r.Result), r.Error, r.Metadata, r.CreatedAt)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *PGStorage) Query(ctx context.Context, criteria Criteria) ([]Record, error) {
	q := s.builder.Select(pgColumns...).
		From(pgTable).
		Where(pgWhere(criteria)).
		OrderBy("created_at DESC", "id")
	if criteria.Limit > 0 {
		q = q.Limit(uint64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		q = q.Offset(uint64(criteria.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return records, nil
}

func (s *PGStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	query, args, err := s.builder.Select("count(*)").
		From(pgTable).
		Where(pgWhere(criteria)).
		ToSql()
	if err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}
	var n int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}
	return n, nil
}

func pgWhere(c Criteria) sq.And {
	where := sq.And{}
	if c.Actor != "" {
		where = append(where, sq.Eq{"actor": c.Actor})
	}
	if c.TenantID != "" {
		where = append(where, sq.Eq{"tenant_id_claimed": c.TenantID})
	}
	if c.Action != "" {
		where = append(where, sq.Eq{"action": c.Action})
	}
	if c.Result != "" {
		where = append(where, sq.Eq{"result": string(c.Result)})
	}
	if c.RequestID != "" {
		where = append(where, sq.Eq{"request_id": c.RequestID})
	}
	if c.BypassOnly {
		where = append(where, sq.Eq{"bypass_used": true})
	}
	if !c.StartTime.IsZero() {
		where = append(where, sq.GtOrEq{"created_at": c.StartTime})
	}
	if !c.EndTime.IsZero() {
		where = append(where, sq.Lt{"created_at": c.EndTime})
	}
	return where
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var (
		r      Record
		result string
	)
	err := row.Scan(&r.ID, &r.Actor, &r.TenantIDClaimed, &r.BypassUsed, &r.RequestID,
		&r.Action, &r.Reason, &result, &r.Error, &r.Metadata, &r.CreatedAt)
	r.Result = Result(result)
	return r, err
}
