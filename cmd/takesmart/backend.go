package main

import (
	"fmt"
	"time"

	"github.com/Koalla18/TakeSmart/internal/cache"
	"github.com/Koalla18/TakeSmart/internal/circuitbreaker"
	"github.com/Koalla18/TakeSmart/internal/config"
	"github.com/Koalla18/TakeSmart/internal/ratelimit"
)

// cacheBackend is the cache selected by config, plus the pub/sub invalidator
// when peers share the Redis instance.
type cacheBackend struct {
	cache cache.Cache
	redis *cache.RedisCache
	inv   *cache.CacheInvalidator
	// listen is set when this process keeps a local tier that peers'
	// purges must reach.
	listen bool
}

func (b *cacheBackend) Close() {
	if b.inv != nil {
		_ = b.inv.Close()
	}
	_ = b.cache.Close()
}

func openCache(cfg *config.Config) (*cacheBackend, error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return &cacheBackend{cache: cache.NewInMemoryCache(time.Minute)}, nil

	case config.BackendRedis, config.BackendTiered:
		rc := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		guarded := cache.NewBreakerCache(rc, "redis", breakerConfig(cfg.Cache.Breaker))
		if cfg.Cache.Backend == config.BackendRedis {
			return &cacheBackend{
				cache: guarded,
				redis: rc,
				inv:   cache.NewCacheInvalidator(nil, rc.Client()),
			}, nil
		}
		l1 := cache.NewInMemoryCache(cfg.Cache.L1TTL)
		return &cacheBackend{
			cache:  cache.NewTieredCache(l1, guarded, cfg.Cache.L1TTL),
			redis:  rc,
			inv:    cache.NewCacheInvalidator(l1, rc.Client()),
			listen: true,
		}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func breakerConfig(b config.BreakerConfig) circuitbreaker.Config {
	return circuitbreaker.Config{
		ErrorPct:       b.ErrorPct,
		MinRequests:    b.MinRequests,
		WindowDuration: b.Window,
		OpenDuration:   b.OpenDuration,
		HalfOpenProbes: b.Probes,
	}
}

// limiter builds the search rate limiter, sharing buckets through Redis when
// the backend has it. It returns nil when rate limiting is off.
func (b *cacheBackend) limiter(cfg *config.Config) *ratelimit.Limiter {
	rl := ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.RateLimit.RequestsPerSecond,
		Burst:             cfg.HTTP.RateLimit.Burst,
	}
	if !rl.Enabled() {
		return nil
	}
	if b.redis == nil {
		return ratelimit.New(ratelimit.NewLocalBackend(), rl)
	}
	primary := ratelimit.NewRedisBackend(b.redis.Client(), cfg.Cache.KeyPrefix+"ratelimit:")
	return ratelimit.New(ratelimit.NewFallbackBackend(primary), rl)
}
