package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/redis"
)

func TestConnectValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  redis.Config
		err  error
	}{
		{name: "empty url", cfg: redis.Config{}, err: redis.ErrEmptyConnectionURL},
		{name: "malformed url", cfg: redis.Config{ConnectionURL: "mysql://localhost", ConnectTimeout: time.Second}, err: redis.ErrFailedToParseRedisConnString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := redis.Connect(context.Background(), tt.cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestConnectGivesUpWhenUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, err := redis.Connect(ctx, redis.Config{
		ConnectionURL:  "redis://127.0.0.1:1/0",
		RetryAttempts:  3,
		RetryInterval:  time.Second,
		ConnectTimeout: 5 * time.Second,
	})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, redis.ErrRedisNotReady)
}
