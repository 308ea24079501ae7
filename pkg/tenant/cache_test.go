package tenant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func createTestTenant(id string, status tenant.Status) *tenant.Tenant {
	return &tenant.Tenant{
		ID:        id,
		Name:      id + " store",
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		c := tenant.NewMemoryCache(10, time.Minute)
		require.NoError(t, c.Set(ctx, createTestTenant("store-a", tenant.StatusActive)))

		got, ok := c.Get(ctx, "store-a")
		require.True(t, ok)
		assert.Equal(t, "store-a", got.ID)
	})

	t.Run("returns copies", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		c := tenant.NewMemoryCache(10, time.Minute)
		require.NoError(t, c.Set(ctx, createTestTenant("store-a", tenant.StatusActive)))

		got, _ := c.Get(ctx, "store-a")
		got.Status = tenant.StatusSuspended

		again, ok := c.Get(ctx, "store-a")
		require.True(t, ok)
		assert.Equal(t, tenant.StatusActive, again.Status)
	})

	t.Run("expires entries", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		c := tenant.NewMemoryCache(10, 20*time.Millisecond)
		require.NoError(t, c.Set(ctx, createTestTenant("store-a", tenant.StatusActive)))

		assert.Eventually(t, func() bool {
			_, ok := c.Get(ctx, "store-a")
			return !ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		c := tenant.NewMemoryCache(2, time.Minute)
		require.NoError(t, c.Set(ctx, createTestTenant("store-a", tenant.StatusActive)))
		require.NoError(t, c.Set(ctx, createTestTenant("store-b", tenant.StatusActive)))
		_, _ = c.Get(ctx, "store-a")
		require.NoError(t, c.Set(ctx, createTestTenant("store-c", tenant.StatusActive)))

		_, ok := c.Get(ctx, "store-b")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "store-a")
		assert.True(t, ok)
	})

	t.Run("rejects tenant without id", func(t *testing.T) {
		t.Parallel()

		c := tenant.NewMemoryCache(0, 0)
		assert.ErrorIs(t, c.Set(context.Background(), &tenant.Tenant{}), tenant.ErrInvalidTenantID)
		assert.ErrorIs(t, c.Set(context.Background(), nil), tenant.ErrInvalidTenantID)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		c := tenant.NewMemoryCache(10, time.Minute)
		require.NoError(t, c.Set(ctx, createTestTenant("store-a", tenant.StatusActive)))
		require.NoError(t, c.Delete(ctx, "store-a"))

		_, ok := c.Get(ctx, "store-a")
		assert.False(t, ok)
	})
}

func TestCachedProvider(t *testing.T) {
	t.Parallel()

	t.Run("loads once then serves from cache", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		p := new(mockProvider)
		p.On("GetByID", mock.Anything, "store-a").
			Return(createTestTenant("store-a", tenant.StatusActive), nil).Once()

		cp := tenant.NewCachedProvider(p, tenant.NewMemoryCache(10, time.Minute))

		for range 3 {
			got, err := cp.GetByID(ctx, "store-a")
			require.NoError(t, err)
			assert.Equal(t, "store-a", got.ID)
		}
		p.AssertExpectations(t)
	})

	t.Run("does not cache failures", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		p := new(mockProvider)
		p.On("GetByID", mock.Anything, "missing").Return(nil, tenant.ErrTenantNotFound).Twice()

		cp := tenant.NewCachedProvider(p, tenant.NewMemoryCache(10, time.Minute))

		for range 2 {
			_, err := cp.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		}
		p.AssertExpectations(t)
	})

	t.Run("nil tenant is not found", func(t *testing.T) {
		t.Parallel()

		cp := tenant.NewCachedProvider(tenant.ProviderFunc(func(context.Context, string) (*tenant.Tenant, error) {
			return nil, nil
		}), nil)

		_, err := cp.GetByID(context.Background(), "store-a")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("rejects empty id without lookup", func(t *testing.T) {
		t.Parallel()

		p := new(mockProvider)
		cp := tenant.NewCachedProvider(p, nil)

		_, err := cp.GetByID(context.Background(), "")
		assert.ErrorIs(t, err, tenant.ErrInvalidTenantID)
		p.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("invalidate forces reload", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		p := new(mockProvider)
		p.On("GetByID", mock.Anything, "store-a").
			Return(createTestTenant("store-a", tenant.StatusActive), nil).Once()
		p.On("GetByID", mock.Anything, "store-a").
			Return(createTestTenant("store-a", tenant.StatusSuspended), nil).Once()

		cp := tenant.NewCachedProvider(p, tenant.NewMemoryCache(10, time.Minute))

		got, err := cp.GetByID(ctx, "store-a")
		require.NoError(t, err)
		assert.True(t, got.Active())

		require.NoError(t, cp.Invalidate(ctx, "store-a"))

		got, err = cp.GetByID(ctx, "store-a")
		require.NoError(t, err)
		assert.False(t, got.Active())
		p.AssertExpectations(t)
	})

	t.Run("propagates provider errors", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("db down")
		p := new(mockProvider)
		p.On("GetByID", mock.Anything, "store-a").Return(nil, boom)

		_, err := tenant.NewCachedProvider(p, nil).GetByID(context.Background(), "store-a")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panics on nil provider", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { tenant.NewCachedProvider(nil, nil) })
	})
}

func TestTenantActive(t *testing.T) {
	t.Parallel()

	assert.True(t, createTestTenant("a", tenant.StatusActive).Active())
	assert.False(t, createTestTenant("a", tenant.StatusSuspended).Active())

	var nilTenant *tenant.Tenant
	assert.False(t, nilTenant.Active())
}
