package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/tenantguard/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	rls := &pgconn.PgError{Code: "42501", Message: `new row violates row-level security policy for table "orders"`}
	perm := &pgconn.PgError{Code: "42501", Message: "permission denied for table orders"}
	dup := &pgconn.PgError{Code: "23505"}
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		rls  bool
		dup  bool
		fk   bool
		nf   bool
	}{
		{name: "nil", err: nil},
		{name: "row security", err: rls, rls: true},
		{name: "wrapped row security", err: fmt.Errorf("insert: %w", rls), rls: true},
		{name: "plain permission denied", err: perm},
		{name: "duplicate key", err: dup, dup: true},
		{name: "foreign key", err: fk, fk: true},
		{name: "no rows", err: fmt.Errorf("find: %w", pgx.ErrNoRows), nf: true},
		{name: "other", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.rls, pg.IsRowSecurityViolation(tt.err))
			assert.Equal(t, tt.dup, pg.IsDuplicateKeyError(tt.err))
			assert.Equal(t, tt.fk, pg.IsForeignKeyViolationError(tt.err))
			assert.Equal(t, tt.nf, pg.IsNotFoundError(tt.err))
		})
	}
}
