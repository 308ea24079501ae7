package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is the interface for tenant caching implementations.
type Cache interface {
	// Get retrieves a tenant from cache by id.
	Get(ctx context.Context, id string) (*Tenant, bool)

	// Set stores a tenant in cache.
	Set(ctx context.Context, tenant *Tenant) error

	// Delete removes a tenant from cache.
	Delete(ctx context.Context, id string) error
}

const (
	// DefaultCacheSize is the default maximum number of tenants kept in memory.
	DefaultCacheSize = 1000
	// DefaultCacheTTL bounds how long a suspension can go unnoticed.
	DefaultCacheTTL = time.Minute
)

// MemoryCache is an in-process LRU cache with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, Tenant]
}

// NewMemoryCache creates an in-memory cache. Non-positive arguments fall back to defaults.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, Tenant](size, nil, ttl)}
}

// Get returns a copy so callers cannot mutate the cached record.
func (c *MemoryCache) Get(_ context.Context, id string) (*Tenant, bool) {
	t, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	return &t, true
}

func (c *MemoryCache) Set(_ context.Context, tenant *Tenant) error {
	if tenant == nil || tenant.ID == "" {
		return ErrInvalidTenantID
	}
	c.lru.Add(tenant.ID, *tenant)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, id string) error {
	c.lru.Remove(id)
	return nil
}

// NoOpCache disables caching, useful for testing or when caching is unwanted.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) (*Tenant, bool) { return nil, false }

func (NoOpCache) Set(context.Context, *Tenant) error { return nil }

func (NoOpCache) Delete(context.Context, string) error { return nil }

// CachedProvider serves tenant lookups from a cache and falls back to the
// wrapped provider on a miss. Lookup failures are never cached.
type CachedProvider struct {
	next  Provider
	cache Cache
}

// NewCachedProvider wraps next with cache. A nil cache disables caching.
func NewCachedProvider(next Provider, cache Cache) *CachedProvider {
	if next == nil {
		panic("tenant: provider cannot be nil")
	}
	if cache == nil {
		cache = NoOpCache{}
	}
	return &CachedProvider{next: next, cache: cache}
}

func (p *CachedProvider) GetByID(ctx context.Context, id string) (*Tenant, error) {
	if id == "" {
		return nil, ErrInvalidTenantID
	}
	if t, ok := p.cache.Get(ctx, id); ok {
		return t, nil
	}
	t, err := p.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	// A failed cache write only costs a future lookup.
	_ = p.cache.Set(ctx, t)
	return t, nil
}

// Invalidate drops a tenant from the cache, e.g. after a status change.
func (p *CachedProvider) Invalidate(ctx context.Context, id string) error {
	if err := p.cache.Delete(ctx, id); err != nil {
		return errors.Join(ErrCacheFailure, err)
	}
	return nil
}
