package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheOperations(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(100, time.Minute)

	t.Run("set and get", func(t *testing.T) {
		value := testEntry{ID: "c-1", Title: "Doe v. Acme", Version: 2}

		require.NoError(t, cache.Set(ctx, "case:tenant-a:c-1", value, time.Hour))

		var result testEntry
		require.NoError(t, cache.Get(ctx, "case:tenant-a:c-1", &result))
		assert.Equal(t, value, result)
	})

	t.Run("get missing key", func(t *testing.T) {
		var result testEntry
		err := cache.Get(ctx, "case:tenant-a:missing", &result)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stored value is isolated from later mutation", func(t *testing.T) {
		value := testEntry{ID: "c-2", Version: 1}
		require.NoError(t, cache.Set(ctx, "case:tenant-a:c-2", value, time.Hour))

		value.Version = 99

		var result testEntry
		require.NoError(t, cache.Get(ctx, "case:tenant-a:c-2", &result))
		assert.Equal(t, 1, result.Version)
	})

	t.Run("exists and delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "case:tenant-a:c-3", testEntry{ID: "c-3"}, time.Hour))

		exists, err := cache.Exists(ctx, "case:tenant-a:c-3")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, cache.Delete(ctx, "case:tenant-a:c-3"))

		exists, err = cache.Exists(ctx, "case:tenant-a:c-3")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("delete pattern", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "case:tenant-a:c-4", testEntry{ID: "c-4"}, time.Hour))
		require.NoError(t, cache.Set(ctx, "case:tenant-b:c-5", testEntry{ID: "c-5"}, time.Hour))

		require.NoError(t, cache.DeletePattern(ctx, "case:tenant-a:*"))

		exists, err := cache.Exists(ctx, "case:tenant-a:c-4")
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = cache.Exists(ctx, "case:tenant-b:c-5")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("expiration", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "expiring", testEntry{ID: "c-6"}, 20*time.Millisecond))

		time.Sleep(50 * time.Millisecond)

		var result testEntry
		err := cache.Get(ctx, "expiring", &result)
		assert.ErrorIs(t, err, ErrNotFound)

		exists, err := cache.Exists(ctx, "expiring")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("flush", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "flush:key", testEntry{ID: "c-7"}, time.Hour))
		require.NoError(t, cache.Flush(ctx))

		exists, err := cache.Exists(ctx, "flush:key")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(2, time.Minute)

	// The entry closest to expiry goes first when the cache is full.
	require.NoError(t, cache.Set(ctx, "a", testEntry{ID: "a"}, time.Minute))
	require.NoError(t, cache.Set(ctx, "b", testEntry{ID: "b"}, time.Hour))
	require.NoError(t, cache.Set(ctx, "c", testEntry{ID: "c"}, time.Hour))

	exists, err := cache.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	for _, key := range []string{"b", "c"} {
		exists, err := cache.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists, "key %s should survive eviction", key)
	}

	// Updating an existing key never triggers eviction.
	require.NoError(t, cache.Set(ctx, "b", testEntry{ID: "b", Version: 2}, time.Hour))

	var result testEntry
	require.NoError(t, cache.Get(ctx, "c", &result))
	assert.Equal(t, "c", result.ID)
}
