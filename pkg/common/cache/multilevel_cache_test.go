package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache wraps a Cache and counts reads that reach it.
type countingCache struct {
	Cache
	gets int
}

func (c *countingCache) Get(ctx context.Context, key string, value any) error {
	c.gets++
	return c.Cache.Get(ctx, key, value)
}

func TestMultiLevelCache(t *testing.T) {
	ctx := context.Background()

	newCaches := func(t *testing.T) (*MultiLevelCache, *countingCache) {
		shared := &countingCache{Cache: NewMemoryCache(100, time.Minute)}
		ml, err := NewMultiLevelCache(LocalConfig{MaxItems: 10, TTL: time.Minute}, shared)
		require.NoError(t, err)
		return ml, shared
	}

	t.Run("local tier serves repeated reads", func(t *testing.T) {
		ml, shared := newCaches(t)

		value := testEntry{ID: "c-1", Title: "Doe v. Acme", Version: 1}
		require.NoError(t, ml.Set(ctx, "case:tenant-a:c-1", value, time.Hour))

		var result testEntry
		require.NoError(t, ml.Get(ctx, "case:tenant-a:c-1", &result))
		require.NoError(t, ml.Get(ctx, "case:tenant-a:c-1", &result))

		assert.Equal(t, value, result)
		assert.Equal(t, 0, shared.gets)
	})

	t.Run("shared hit is promoted to local tier", func(t *testing.T) {
		ml, shared := newCaches(t)

		value := testEntry{ID: "c-2", Version: 4}
		require.NoError(t, shared.Set(ctx, "case:tenant-a:c-2", value, time.Hour))

		var result testEntry
		require.NoError(t, ml.Get(ctx, "case:tenant-a:c-2", &result))
		assert.Equal(t, value, result)
		assert.Equal(t, 1, shared.gets)

		require.NoError(t, ml.Get(ctx, "case:tenant-a:c-2", &result))
		assert.Equal(t, 1, shared.gets)
	})

	t.Run("miss in both tiers", func(t *testing.T) {
		ml, _ := newCaches(t)

		var result testEntry
		err := ml.Get(ctx, "case:tenant-a:missing", &result)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set writes through to shared tier", func(t *testing.T) {
		ml, shared := newCaches(t)

		value := testEntry{ID: "c-3", Version: 7}
		require.NoError(t, ml.Set(ctx, "case:tenant-a:c-3", value, time.Hour))

		var result testEntry
		require.NoError(t, shared.Cache.Get(ctx, "case:tenant-a:c-3", &result))
		assert.Equal(t, value, result)
	})

	t.Run("delete removes from both tiers", func(t *testing.T) {
		ml, shared := newCaches(t)

		require.NoError(t, ml.Set(ctx, "case:tenant-a:c-4", testEntry{ID: "c-4"}, time.Hour))
		require.NoError(t, ml.Delete(ctx, "case:tenant-a:c-4"))

		var result testEntry
		err := ml.Get(ctx, "case:tenant-a:c-4", &result)
		assert.ErrorIs(t, err, ErrNotFound)

		exists, err := shared.Exists(ctx, "case:tenant-a:c-4")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("delete pattern clears both tiers", func(t *testing.T) {
		shared := NewMemoryCache(100, time.Minute)
		ml, err := NewMultiLevelCache(LocalConfig{MaxItems: 10, TTL: time.Minute}, shared)
		require.NoError(t, err)

		require.NoError(t, ml.Set(ctx, "case:tenant-a:c-5", testEntry{ID: "c-5"}, time.Hour))
		require.NoError(t, ml.Set(ctx, "case:tenant-b:c-6", testEntry{ID: "c-6"}, time.Hour))

		require.NoError(t, ml.DeletePattern(ctx, "case:tenant-a:*"))

		var result testEntry
		err = ml.Get(ctx, "case:tenant-a:c-5", &result)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, ml.Get(ctx, "case:tenant-b:c-6", &result))
		assert.Equal(t, "c-6", result.ID)
	})

	t.Run("expired local entry falls back to shared tier", func(t *testing.T) {
		shared := &countingCache{Cache: NewMemoryCache(100, time.Minute)}
		ml, err := NewMultiLevelCache(LocalConfig{MaxItems: 10, TTL: 20 * time.Millisecond}, shared)
		require.NoError(t, err)

		require.NoError(t, ml.Set(ctx, "case:tenant-a:c-7", testEntry{ID: "c-7"}, time.Hour))

		time.Sleep(50 * time.Millisecond)

		var result testEntry
		require.NoError(t, ml.Get(ctx, "case:tenant-a:c-7", &result))
		assert.Equal(t, "c-7", result.ID)
		assert.Equal(t, 1, shared.gets)
	})

	t.Run("local capacity is bounded", func(t *testing.T) {
		shared := NewMemoryCache(100, time.Minute)
		ml, err := NewMultiLevelCache(LocalConfig{MaxItems: 2, TTL: time.Minute}, shared)
		require.NoError(t, err)

		require.NoError(t, ml.Set(ctx, "a", testEntry{ID: "a"}, time.Hour))
		require.NoError(t, ml.Set(ctx, "b", testEntry{ID: "b"}, time.Hour))
		require.NoError(t, ml.Set(ctx, "c", testEntry{ID: "c"}, time.Hour))

		assert.Equal(t, 2, ml.local.Len())

		// Evicted entries are still served from the shared tier.
		var result testEntry
		require.NoError(t, ml.Get(ctx, "a", &result))
		assert.Equal(t, "a", result.ID)
	})
}
