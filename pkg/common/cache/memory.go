package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"
)

// MemoryCache implements an in-memory cache. Values are stored as JSON
// so Get and Set behave exactly like the Redis implementation.
type MemoryCache struct {
	items      map[string]memoryItem
	mu         sync.RWMutex
	maxItems   int
	defaultTTL time.Duration
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// NewMemoryCache creates a new in-memory cache. Non-positive maxItems
// and defaultTTL fall back to 10000 entries and five minutes.
func NewMemoryCache(maxItems int, defaultTTL time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 10000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &MemoryCache{
		items:      make(map[string]memoryItem),
		maxItems:   maxItems,
		defaultTTL: defaultTTL,
	}
}

// Get retrieves data from the cache
func (c *MemoryCache) Get(ctx context.Context, key string, value any) error {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || item.expired(time.Now()) {
		return ErrNotFound
	}

	return json.Unmarshal(item.data, value)
}

// Set stores data in the cache
func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		c.evict()
	}

	c.items[key] = memoryItem{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes data from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// DeletePattern removes every key matching a glob pattern. Cache keys
// never contain "/", so path.Match gives the same matches as a Redis
// SCAN with the same pattern.
func (c *MemoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return err
		}
		if ok {
			delete(c.items, key)
		}
	}
	return nil
}

// Exists checks if a key exists in the cache
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		return false, nil
	}
	return !item.expired(time.Now()), nil
}

// Flush clears all data from the cache
func (c *MemoryCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]memoryItem)
	return nil
}

// Close closes the cache connection
func (c *MemoryCache) Close() error {
	return nil
}

// evict drops expired entries, then the entry closest to expiry if the
// cache is still full. Called with the write lock held.
func (c *MemoryCache) evict() {
	now := time.Now()
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
		}
	}
	if len(c.items) < c.maxItems {
		return
	}

	var oldestKey string
	var oldestTime time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
