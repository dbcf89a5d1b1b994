// Package cache provides the caching layer shared by the repositories
// and API handlers. A Redis-backed implementation is the default; a
// process-local implementation backs tests and single-node deployments,
// and an optional LRU tier can be layered in front of Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key is not found in the cache
var ErrNotFound = errors.New("key not found in cache")

// Cache interface defines caching operations
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Close() error
}

// Backend types accepted by NewCache.
const (
	TypeRedis  = "redis"
	TypeMemory = "memory"
	TypeNone   = "none"
)

// NewCache creates a cache from configuration. An empty Type selects
// Redis; "memory" keeps everything in process for local development;
// "none" disables caching entirely. Unknown types are an error so a
// misconfigured deployment fails at startup rather than running
// silently uncached.
func NewCache(ctx context.Context, cfg RedisConfig) (Cache, error) {
	var base Cache

	switch cfg.Type {
	case "", TypeRedis:
		redisCache, err := NewRedisCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		base = redisCache
	case TypeMemory:
		return NewMemoryCache(cfg.Local.MaxItems, cfg.Local.TTL), nil
	case TypeNone:
		return NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %q", cfg.Type)
	}

	if cfg.Local.Enabled {
		return NewMultiLevelCache(cfg.Local, base)
	}
	return base, nil
}
