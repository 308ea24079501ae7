package scoped_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/tenantguard/pkg/alert"
)

type order struct {
	ID       string `db:"id"`
	TenantID string `db:"tenant_id"`
	Total    int64  `db:"total"`
}

var orderColumns = []string{"id", "tenant_id", "total"}

type call struct {
	sql  string
	args []any
}

// fakeDB is an in-memory orders table. Queries carrying a tenant predicate are
// answered with that tenant's rows only, unless leak is set.
type fakeDB struct {
	mu      sync.Mutex
	calls   []call
	orders  []order
	leak    bool
	err     error
	deleted int64
}

func (db *fakeDB) record(sql string, args []any) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls = append(db.calls, call{sql: sql, args: args})
}

func (db *fakeDB) last() call {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.calls) == 0 {
		return call{}
	}
	return db.calls[len(db.calls)-1]
}

func (db *fakeDB) callCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.calls)
}

func (db *fakeDB) snapshot() []order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]order(nil), db.orders...)
}

func (db *fakeDB) visible(sql string, args []any) []order {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.leak || !strings.Contains(sql, "tenant_id = $1") {
		return append([]order(nil), db.orders...)
	}
	var out []order
	for _, o := range db.orders {
		if o.TenantID == args[0] {
			out = append(out, o)
		}
	}
	return out
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.record(sql, args)
	if db.err != nil {
		return nil, db.err
	}

	switch {
	case strings.HasPrefix(sql, "INSERT"):
		o := order{ID: "o-new", Total: 0}
		for i, col := range insertColumns(sql) {
			switch col {
			case "tenant_id":
				o.TenantID = args[i].(string)
			case "total":
				o.Total = args[i].(int64)
			case "id":
				o.ID = args[i].(string)
			}
		}
		return newRows(o), nil
	case strings.HasPrefix(sql, "UPDATE"):
		// The key is the last argument, the tenant the one before it.
		key := args[len(args)-1]
		restricted := strings.Contains(sql, "tenant_id = $")
		for _, o := range db.snapshot() {
			if o.ID == key && (!restricted || o.TenantID == args[len(args)-2]) {
				return newRows(o), nil
			}
		}
		return newRows(), nil
	}

	rows := db.visible(sql, args)
	var key any
	switch {
	case strings.Contains(sql, "AND id = $2"):
		key = args[1]
	case strings.Contains(sql, "(id = $1)"):
		key = args[0]
	}
	if key != nil {
		var match []order
		for _, o := range rows {
			if o.ID == key {
				match = append(match, o)
			}
		}
		rows = match
	}
	return newRows(rows...), nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.record(sql, args)
	if db.err != nil {
		return errRow{err: db.err}
	}
	return countRow(len(db.visible(sql, args)))
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.record(sql, args)
	if db.err != nil {
		return pgconn.CommandTag{}, db.err
	}
	if db.deleted > 0 {
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func insertColumns(sql string) []string {
	start := strings.Index(sql, "(")
	end := strings.Index(sql, ")")
	cols := strings.Split(sql[start+1:end], ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

type countRow int

func (n countRow) Scan(dest ...any) error {
	*dest[0].(*int64) = int64(n)
	return nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// fakeRows serves orders through the pgx.Rows interface.
type fakeRows struct {
	data [][]any
	pos  int
}

func newRows(orders ...order) *fakeRows {
	r := &fakeRows{pos: -1}
	for _, o := range orders {
		r.data = append(r.data, []any{o.ID, o.TenantID, o.Total})
	}
	return r
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }
func (r *fakeRows) RawValues() [][]byte           { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(orderColumns))
	for i, c := range orderColumns {
		fields[i] = pgconn.FieldDescription{Name: c}
	}
	return fields
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.pos], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row, err := r.Values()
	if err != nil {
		return err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

// alerts records reported violations.
type alerts struct {
	mu   sync.Mutex
	list []alert.Violation
}

func (a *alerts) Alert(_ context.Context, v *alert.Violation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.list = append(a.list, *v)
}

func (a *alerts) all() []alert.Violation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alert.Violation(nil), a.list...)
}
