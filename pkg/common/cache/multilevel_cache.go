package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LocalConfig sizes the in-process cache tier.
type LocalConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxItems int           `mapstructure:"max_items"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MultiLevelCache layers a process-local LRU in front of a shared
// cache. Reads check the local tier first and promote shared hits into
// it; writes and invalidations go through to both tiers. The local
// tier is bounded by both entry count and TTL, so a stale local entry
// can outlive a shared invalidation by at most the configured TTL.
type MultiLevelCache struct {
	local  *lru.Cache[string, localEntry]
	shared Cache
	ttl    time.Duration
}

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMultiLevelCache creates a multi-level cache over the given shared
// cache. Non-positive config fields fall back to 1000 entries and five
// minutes.
func NewMultiLevelCache(cfg LocalConfig, shared Cache) (*MultiLevelCache, error) {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	local, err := lru.New[string, localEntry](cfg.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache tier: %w", err)
	}

	return &MultiLevelCache{
		local:  local,
		shared: shared,
		ttl:    cfg.TTL,
	}, nil
}

// Get retrieves a value, preferring the local tier.
func (c *MultiLevelCache) Get(ctx context.Context, key string, value any) error {
	if entry, ok := c.local.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			return json.Unmarshal(entry.data, value)
		}
		c.local.Remove(key)
	}

	var raw json.RawMessage
	if err := c.shared.Get(ctx, key, &raw); err != nil {
		return err
	}

	c.local.Add(key, localEntry{data: raw, expiresAt: time.Now().Add(c.ttl)})
	return json.Unmarshal(raw, value)
}

// Set stores a value in both tiers. The value is marshaled once so the
// tiers always hold the same representation.
func (c *MultiLevelCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	localTTL := c.ttl
	if ttl > 0 && ttl < localTTL {
		localTTL = ttl
	}
	c.local.Add(key, localEntry{data: data, expiresAt: time.Now().Add(localTTL)})

	return c.shared.Set(ctx, key, json.RawMessage(data), ttl)
}

// Delete removes a key from both tiers.
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.local.Remove(key)
	return c.shared.Delete(ctx, key)
}

// DeletePattern removes matching keys from both tiers.
func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	for _, key := range c.local.Keys() {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return err
		}
		if ok {
			c.local.Remove(key)
		}
	}

	if inv, ok := c.shared.(interface {
		DeletePattern(ctx context.Context, pattern string) error
	}); ok {
		return inv.DeletePattern(ctx, pattern)
	}
	return nil
}

// Exists checks both tiers.
func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if entry, ok := c.local.Get(key); ok && time.Now().Before(entry.expiresAt) {
		return true, nil
	}
	return c.shared.Exists(ctx, key)
}

// Flush clears both tiers.
func (c *MultiLevelCache) Flush(ctx context.Context) error {
	c.local.Purge()
	return c.shared.Flush(ctx)
}

// Close closes the shared tier. The local tier needs no teardown.
func (c *MultiLevelCache) Close() error {
	c.local.Purge()
	return c.shared.Close()
}
