package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares tenant records between processes. Entries expire after
// ttl so status changes propagate without explicit invalidation.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. Keys are stored as prefix+"tenant:"+id.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("tenant: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(id string) string {
	return c.prefix + "tenant:" + id
}

// Get treats any backend or decoding failure as a miss.
func (c *RedisCache) Get(ctx context.Context, id string) (*Tenant, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var t Tenant
	if err := json.Unmarshal(raw, &t); err != nil || t.ID != id {
		return nil, false
	}
	return &t, true
}

func (c *RedisCache) Set(ctx context.Context, tenant *Tenant) error {
	if tenant == nil || tenant.ID == "" {
		return ErrInvalidTenantID
	}
	raw, err := json.Marshal(tenant)
	if err != nil {
		return errors.Join(ErrCacheFailure, err)
	}
	if err := c.client.Set(ctx, c.key(tenant.ID), raw, c.ttl).Err(); err != nil {
		return errors.Join(ErrCacheFailure, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrCacheFailure, err)
	}
	return nil
}
