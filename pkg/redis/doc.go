// Package redis connects to the Redis instance that backs the shared tenant
// cache (see tenant.RedisCache) and exposes a health check for readiness probes.
//
// Configuration is read from the environment through the Config struct tags:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	cache := tenant.NewRedisCache(client, cfg.KeyPrefix, time.Minute)
package redis
