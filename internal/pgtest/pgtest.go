// Package pgtest opens the Postgres database used by integration tests.
//
// Tests run only when TENANTGUARD_TEST_DATABASE_URL is set and -short is not.
// The role in the URL must own the schema and must be neither superuser nor
// BYPASSRLS, otherwise row policies are not evaluated and the tests skip.
// Packages migrate the same database, so run them with -p 1.
package pgtest

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/migrations"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
)

const EnvDatabaseURL = "TENANTGUARD_TEST_DATABASE_URL"

// Open connects, applies the bundled migrations and returns a pool guarded by
// a binder with default settings.
func Open(t testing.TB) (*pgxpool.Pool, *pg.Binder) {
	t.Helper()

	url := os.Getenv(EnvDatabaseURL)
	if url == "" || testing.Short() {
		t.Skipf("set %s to run database tests", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log := slog.New(slog.DiscardHandler)
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		MaxIdleConns:     1,
		RetryAttempts:    1,
		RetryInterval:    time.Second,
		MigrationsTable:  "schema_migrations",
	}
	binder := pg.NewBinder(pg.DefaultBinderConfig(), log)

	pool, err := pg.Connect(ctx, cfg, binder)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	var unrestricted bool
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT rolsuper OR rolbypassrls FROM pg_roles WHERE rolname = current_user",
	).Scan(&unrestricted))
	if unrestricted {
		t.Skip("test role bypasses row-level security")
	}

	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, cfg, log))
	return pool, binder
}

// Table returns a unique table name so tests do not share state.
func Table(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
}
