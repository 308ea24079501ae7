package bypass_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/audit"
	"github.com/dmitrymomot/tenantguard/pkg/bypass"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

func newRunner(t *testing.T, opts ...bypass.Option) (*bypass.Runner, *audit.MemoryStorage) {
	t.Helper()
	storage := audit.NewMemoryStorage()
	r := bypass.New(audit.NewLogger(storage), append([]bypass.Option{bypass.WithEnabled(true)}, opts...)...)
	return r, storage
}

func adminContext(t *testing.T, privileged bool) context.Context {
	t.Helper()
	ctx, err := tenant.Set(context.Background(), "store-hq",
		tenant.WithPrivileged(privileged),
		tenant.WithPrincipal("admin-1"),
		tenant.WithRequestID("req-1"),
	)
	require.NoError(t, err)
	return ctx
}

type failingAuditor struct {
	mu   sync.Mutex
	errs []error
}

func (a *failingAuditor) Write(ctx context.Context, _ audit.Record, _ ...audit.RecordOption) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, ctx.Err())
	return audit.ErrStorageNotAvailable
}

func TestNewRequiresAuditor(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { bypass.New(nil) })
}

func TestRunDisabledByDefault(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	r := bypass.New(audit.NewLogger(storage))
	assert.False(t, r.Enabled())

	called := false
	err := r.Run(adminContext(t, true), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, bypass.ErrDisabled)
	assert.False(t, called)

	records := storage.Records()
	require.Len(t, records, 1)
	assert.Equal(t, audit.ResultDenied, records[0].Result)
	assert.False(t, records[0].BypassUsed)
	assert.Equal(t, "admin-1", records[0].Actor)
}

func TestRunRequiresPrivilegedScope(t *testing.T) {
	t.Parallel()

	t.Run("no scope", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		called := false
		err := r.Run(context.Background(), func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, tenant.ErrContextNotSet)
		assert.False(t, called)

		records := storage.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultDenied, records[0].Result)
		assert.Equal(t, "unknown", records[0].Actor)
		assert.False(t, records[0].BypassUsed)
		assert.Equal(t, tenant.ErrContextNotSet.Error(), records[0].Error)
	})

	t.Run("cleared scope", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		ctx, release, err := tenant.Begin(context.Background(), "store-hq", tenant.WithPrivileged(true))
		require.NoError(t, err)
		release()

		err = r.Run(ctx, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, tenant.ErrContextNotSet)

		records := storage.Records()
		require.Len(t, records, 1, "an attempt from an outlived request is still recorded")
		assert.Equal(t, audit.ResultDenied, records[0].Result)
		assert.Equal(t, "unknown", records[0].Actor)
	})

	t.Run("not privileged", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		called := false
		err := r.Run(adminContext(t, false), func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, tenant.ErrNotPrivileged)
		assert.False(t, called)

		records := storage.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultDenied, records[0].Result)
	})
}

func TestRunAuditsEveryOutcome(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		ctx := adminContext(t, true)

		err := r.Run(ctx, func(inner context.Context) error {
			assert.True(t, tenant.IsBypass(inner))
			return nil
		}, bypass.WithAction("report.orders"), bypass.WithReason("monthly revenue"), bypass.WithMetadata("rows", 8))
		require.NoError(t, err)
		assert.False(t, tenant.IsBypass(ctx), "caller scope stays unelevated")

		records := storage.Records()
		require.Len(t, records, 1)
		rec := records[0]
		assert.Equal(t, "admin-1", rec.Actor)
		assert.Equal(t, "store-hq", rec.TenantIDClaimed)
		assert.Equal(t, "req-1", rec.RequestID)
		assert.Equal(t, "report.orders", rec.Action)
		assert.Equal(t, "monthly revenue", rec.Reason)
		assert.Equal(t, audit.ResultSuccess, rec.Result)
		assert.True(t, rec.BypassUsed)
		assert.Equal(t, map[string]any{"rows": 8}, rec.Metadata)
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		boom := errors.New("export failed")

		err := r.Run(adminContext(t, true), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)

		records := storage.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultFailure, records[0].Result)
		assert.Equal(t, "export failed", records[0].Error)
		assert.Equal(t, bypass.DefaultAction, records[0].Action)
	})

	t.Run("panic is audited then re-raised", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)

		assert.PanicsWithValue(t, "nil map", func() {
			_ = r.Run(adminContext(t, true), func(context.Context) error { panic("nil map") })
		})

		records := storage.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultPanic, records[0].Result)
		assert.Equal(t, "nil map", records[0].Error)
	})

	t.Run("cancelled request is still audited", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		ctx, cancel := context.WithCancel(adminContext(t, true))

		err := r.Run(ctx, func(inner context.Context) error {
			cancel()
			return inner.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)

		records := storage.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultFailure, records[0].Result)
	})

	t.Run("audit failure is surfaced", func(t *testing.T) {
		t.Parallel()

		auditor := &failingAuditor{}
		r := bypass.New(auditor, bypass.WithEnabled(true))
		boom := errors.New("export failed")

		err := r.Run(adminContext(t, true), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, bypass.ErrAuditFailed)
		assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)

		err = r.Run(adminContext(t, true), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, bypass.ErrAuditFailed)

		for _, ctxErr := range auditor.errs {
			assert.NoError(t, ctxErr, "audit writes use a live context")
		}
	})
}

func TestRunConfig(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	r := bypass.New(audit.NewLogger(storage), bypass.WithConfig(bypass.Config{Enabled: true}))
	assert.True(t, r.Enabled())

	r = bypass.New(audit.NewLogger(storage), bypass.WithConfig(bypass.Config{}))
	assert.False(t, r.Enabled())
}

func TestForEachTenant(t *testing.T) {
	t.Parallel()

	t.Run("each call runs under an ordinary scope", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t, bypass.WithConcurrency(2))

		var mu sync.Mutex
		var seen []string
		err := r.ForEachTenant(adminContext(t, true), []string{"store-a", "store-b", "store-c"},
			func(ctx context.Context, id string) error {
				s, ok := tenant.Get(ctx)
				if !assert.True(t, ok) {
					return nil
				}
				assert.Equal(t, id, s.TenantID)
				assert.False(t, s.Bypass)
				assert.False(t, s.Privileged)
				assert.Equal(t, "admin-1", s.PrincipalID)

				mu.Lock()
				seen = append(seen, id)
				mu.Unlock()
				return nil
			}, bypass.WithReason("usage report"))
		require.NoError(t, err)

		sort.Strings(seen)
		assert.Equal(t, []string{"store-a", "store-b", "store-c"}, seen)

		records := storage.Records()
		require.Len(t, records, 1)
		assert.Equal(t, bypass.DefaultFanOutAction, records[0].Action)
		assert.Equal(t, audit.ResultSuccess, records[0].Result)
		assert.Equal(t, []string{"store-a", "store-b", "store-c"}, records[0].Metadata["tenants"])
	})

	t.Run("first error fails the run", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		boom := errors.New("store-b unavailable")

		err := r.ForEachTenant(adminContext(t, true), []string{"store-a", "store-b"},
			func(ctx context.Context, id string) error {
				if id == "store-b" {
					return boom
				}
				return nil
			})
		assert.ErrorIs(t, err, boom)
		require.Len(t, storage.Records(), 1)
		assert.Equal(t, audit.ResultFailure, storage.Records()[0].Result)
	})

	t.Run("requires tenants and privilege", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t)
		noop := func(context.Context, string) error { return nil }

		assert.ErrorIs(t, r.ForEachTenant(adminContext(t, true), nil, noop), bypass.ErrNoTenants)
		assert.ErrorIs(t, r.ForEachTenant(adminContext(t, false), []string{"store-a"}, noop), tenant.ErrNotPrivileged)
		assert.ErrorIs(t, r.ForEachTenant(context.Background(), []string{"store-a"}, noop), tenant.ErrContextNotSet)

		records := storage.Records()
		require.Len(t, records, 3)
		for _, rec := range records {
			assert.Equal(t, audit.ResultDenied, rec.Result)
		}
	})

	t.Run("panic in a tenant call is audited then re-raised", func(t *testing.T) {
		t.Parallel()

		r, storage := newRunner(t, bypass.WithConcurrency(2))

		assert.PanicsWithValue(t, "nil map", func() {
			_ = r.ForEachTenant(adminContext(t, true), []string{"store-a", "store-b", "store-c"},
				func(ctx context.Context, id string) error {
					if id == "store-b" {
						panic("nil map")
					}
					return nil
				})
		})

		records := storage.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultPanic, records[0].Result)
		assert.Equal(t, "nil map", records[0].Error)
		assert.True(t, records[0].BypassUsed)
	})
}

func TestRunMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r, _ := newRunner(t, bypass.WithMetrics(reg))

	require.NoError(t, r.Run(adminContext(t, true), func(context.Context) error { return nil }, bypass.WithAction("report")))
	_ = r.Run(adminContext(t, false), func(context.Context) error { return nil }, bypass.WithAction("report"))

	// A second runner on the same registry shares the counter.
	r2, _ := newRunner(t, bypass.WithMetrics(reg))
	require.NoError(t, r2.Run(adminContext(t, true), func(context.Context) error { return nil }, bypass.WithAction("report")))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "tenantguard_bypass_runs_total", families[0].GetName())

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "tenantguard_bypass_runs_total"))
}
