package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx)
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsMiss(err))

	assert.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))
	val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx)
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "key", []byte("value"), 20*time.Millisecond))
	val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), val)

	time.Sleep(30 * time.Millisecond)
	_, err = c.Get(ctx, "key")
	assert.True(t, IsMiss(err))
}

func TestMemoryDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx, WithDefaultTTL(20*time.Millisecond))
	defer c.Close()

	// ttl <= 0 falls back to the configured default.
	assert.NoError(t, c.Set(ctx, "key", []byte("value"), 0))
	time.Sleep(30 * time.Millisecond)
	_, err := c.Get(ctx, "key")
	assert.True(t, IsMiss(err))
}

func TestMemoryNoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx)
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "key", []byte("value"), 0))
	time.Sleep(20 * time.Millisecond)
	_, err := c.Get(ctx, "key")
	assert.NoError(t, err)
}

func TestMemoryBackgroundExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx, WithExpiryCheck(20*time.Millisecond))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "key", []byte("value"), 10*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	mc := c.(*memoryCache)
	mc.mutex.Lock()
	assert.Empty(t, mc.entries)
	assert.Zero(t, mc.lru.Len())
	mc.mutex.Unlock()
}

func TestMemoryLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx, WithCapacity(2))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	assert.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	assert.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	// "a" was least recently used and is gone; "b" and "c" remain.
	_, err := c.Get(ctx, "a")
	assert.True(t, IsMiss(err))
	_, err = c.Get(ctx, "b")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)

	stats := c.(StatsProvider).Stats()
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
}

func TestMemoryLRUEvictionRespectsRecency(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx, WithCapacity(2))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	assert.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	// Reading "a" makes "b" the eviction victim.
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err = c.Get(ctx, "b")
	assert.True(t, IsMiss(err))
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryIdleEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx, WithIdleTTL(30*time.Millisecond))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "hot", []byte("1"), 0))
	assert.NoError(t, c.Set(ctx, "cold", []byte("2"), 0))

	// Keep "hot" warm past the idle window.
	time.Sleep(20 * time.Millisecond)
	_, err := c.Get(ctx, "hot")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, err = c.Get(ctx, "hot")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "cold")
	assert.True(t, IsMiss(err))
}

func TestMemoryDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx)
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	assert.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	// Delete is a no-op success for absent keys.
	assert.NoError(t, c.Delete(ctx, "missing"))
	assert.NoError(t, c.Delete(ctx, "a"))
	_, err := c.Get(ctx, "a")
	assert.True(t, IsMiss(err))

	assert.NoError(t, c.Clear(ctx))
	_, err = c.Get(ctx, "b")
	assert.True(t, IsMiss(err))
}

func TestMemoryGetMany(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx)
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	assert.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	result, err := c.GetMany(ctx, []string{"a", "b", "missing"})
	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, []byte("1"), result["a"])
	assert.Equal(t, []byte("2"), result["b"])
	assert.NotContains(t, result, "missing")
}

func TestMemorySetCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx)
	defer c.Close()

	buf := []byte("original")
	assert.NoError(t, c.Set(ctx, "key", buf, 0))
	copy(buf, "mutated!")

	val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.Equal(t, []byte("original"), val)
}

func TestMemoryOverwriteUpdatesEntry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx, WithCapacity(2))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	assert.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	// Overwriting must not trigger eviction.
	assert.NoError(t, c.Set(ctx, "a", []byte("1b"), 0))

	val, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, []byte("1b"), val)
	_, err = c.Get(ctx, "b")
	assert.NoError(t, err)
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(ctx, WithCapacity(10))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	c.Get(ctx, "a")
	c.Get(ctx, "missing")

	stats := c.(StatsProvider).Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestMemoryZeroExpiryCheckUsesDefault(t *testing.T) {
	ctx := context.Background()

	// A zero or negative cleanup interval must not crash the janitor.
	c := NewMemory(ctx, WithExpiryCheck(0))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))
	val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), val)

	neg := NewMemory(ctx, WithExpiryCheck(-time.Second))
	defer neg.Close()
	assert.NoError(t, neg.Set(ctx, "key", []byte("value"), time.Minute))
}
