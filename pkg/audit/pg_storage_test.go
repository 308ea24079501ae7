package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/internal/pgtest"
	"github.com/dmitrymomot/tenantguard/pkg/audit"
)

func TestPGStorage(t *testing.T) {
	pool, _ := pgtest.Open(t)
	ctx := context.Background()
	storage := audit.NewPGStorage(pool)

	actor := "admin-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)
	records := []audit.Record{
		{ID: uuid.NewString(), Actor: actor, TenantIDClaimed: "store-a", BypassUsed: true, Action: "tenant.export", Result: audit.ResultSuccess, Metadata: map[string]any{"rows": float64(8)}, CreatedAt: base},
		{ID: uuid.NewString(), Actor: actor, Action: "tenant.export", Result: audit.ResultFailure, Error: "timeout", CreatedAt: base.Add(time.Second)},
	}
	require.NoError(t, storage.StoreBatch(ctx, records))

	got, err := storage.Query(ctx, audit.Criteria{Actor: actor})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[1].ID, got[0].ID)
	assert.Equal(t, "timeout", got[0].Error)
	assert.Equal(t, map[string]any{"rows": float64(8)}, got[1].Metadata)
	assert.True(t, got[1].BypassUsed)

	n, err := storage.Count(ctx, audit.Criteria{Actor: actor, BypassOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	t.Run("records are append-only", func(t *testing.T) {
		_, err := pool.Exec(ctx, "UPDATE audit_records SET reason = 'edited' WHERE actor = $1", actor)
		assert.ErrorContains(t, err, "append-only")

		_, err = pool.Exec(ctx, "DELETE FROM audit_records WHERE actor = $1", actor)
		assert.ErrorContains(t, err, "append-only")
	})
}
