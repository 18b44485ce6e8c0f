package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptrag/pkg/types"
)

type memDurable struct {
	mu      sync.Mutex
	entries map[CacheKey]CachedVector
	failGet bool
}

func newMemDurable() *memDurable {
	return &memDurable{entries: make(map[CacheKey]CachedVector)}
}

func (m *memDurable) GetCachedVector(_ context.Context, hash, model string) (*CachedVector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("disk on fire")
	}
	v, ok := m.entries[CacheKey{hash, model}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *memDurable) PutCachedVector(_ context.Context, v CachedVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[CacheKey{v.Hash, v.Model}] = v
	return nil
}

func (m *memDurable) DeleteCachedVectorsOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, v := range m.entries {
		if v.CreatedAt.Before(cutoff) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestComputeHash(t *testing.T) {
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ComputeHash("hello world"))
	assert.Equal(t, ComputeHash("test"), ComputeHash("test"))
	assert.NotEqual(t, ComputeHash("a"), ComputeHash("b"))
}

func TestCacheGetPut(t *testing.T) {
	ctx := context.Background()
	c := NewCache(DefaultCacheConfig())

	_, ok := c.Get(ctx, "h1", "m")
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "h1", "m", []float32{1, 2, 3}))
	got, ok := c.Get(ctx, "h1", "m")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)

	t.Run("returns copies", func(t *testing.T) {
		got[0] = 99
		again, _ := c.Get(ctx, "h1", "m")
		assert.Equal(t, float32(1), again[0])
	})

	t.Run("model is part of the key", func(t *testing.T) {
		_, ok := c.Get(ctx, "h1", "other-model")
		assert.False(t, ok)
	})

	t.Run("empty vectors are rejected", func(t *testing.T) {
		assert.ErrorIs(t, c.Put(ctx, "h2", "m", nil), types.ErrEmptyVector)
	})

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(12), stats.Bytes)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestCacheLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewCache(CacheConfig{MaxEntries: 2})

	require.NoError(t, c.Put(ctx, "a", "m", []float32{1}))
	require.NoError(t, c.Put(ctx, "b", "m", []float32{2}))
	_, _ = c.Get(ctx, "a", "m")
	require.NoError(t, c.Put(ctx, "c", "m", []float32{3}))

	_, ok := c.Get(ctx, "b", "m")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(ctx, "a", "m")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCacheTTLStrategy(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(CacheConfig{Strategy: StrategyTTL, MaxAge: time.Hour}, WithClock(clock.now))

	require.NoError(t, c.Put(ctx, "a", "m", []float32{1}))
	clock.advance(30 * time.Minute)
	_, ok := c.Get(ctx, "a", "m")
	assert.True(t, ok)

	clock.advance(31 * time.Minute)
	_, ok = c.Get(ctx, "a", "m")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheDurablePromotion(t *testing.T) {
	ctx := context.Background()
	store := newMemDurable()

	first := NewCache(DefaultCacheConfig(), WithDurableStore(store))
	require.NoError(t, first.Put(ctx, "h", "m", []float32{0.5, 0.5}))
	require.Len(t, store.entries, 1)

	second := NewCache(DefaultCacheConfig(), WithDurableStore(store))
	assert.Equal(t, 0, second.Len())
	got, ok := second.Get(ctx, "h", "m")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.5}, got)
	assert.Equal(t, 1, second.Len(), "durable hit is promoted to memory")

	store.failGet = true
	_, ok = second.Get(ctx, "missing", "m")
	assert.False(t, ok, "durable failures degrade to a miss")
}

func TestCacheCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newMemDurable()
	c := NewCache(DefaultCacheConfig(), WithDurableStore(store), WithClock(clock.now))

	require.NoError(t, c.Put(ctx, "old", "m", []float32{1}))
	clock.advance(48 * time.Hour)
	require.NoError(t, c.Put(ctx, "new", "m", []float32{2}))

	res, err := c.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Memory: 1, Durable: 1}, res)

	_, ok := c.Get(ctx, "new", "m")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	_, err = c.CleanupOlderThan(ctx, -time.Second)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestCacheStatsAges(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(DefaultCacheConfig(), WithClock(clock.now))

	require.NoError(t, c.Put(ctx, "a", "m", []float32{1}))
	clock.advance(time.Hour)
	require.NoError(t, c.Put(ctx, "b", "m", []float32{1}))
	clock.advance(time.Hour)

	stats := c.Stats()
	assert.Equal(t, 2*time.Hour, stats.OldestAge)
	assert.Equal(t, time.Hour, stats.NewestAge)
	assert.Equal(t, 90*time.Minute, stats.AverageAge)
}

func TestCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewCache(CacheConfig{MaxEntries: 50})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := ComputeHash(string(rune('a' + (i+j)%26)))
				_ = c.Put(ctx, key, "m", []float32{float32(j)})
				_, _ = c.Get(ctx, key, "m")
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}

func TestParseCacheStrategy(t *testing.T) {
	s, err := ParseCacheStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyLRU, s)

	s, err = ParseCacheStrategy("age")
	require.NoError(t, err)
	assert.Equal(t, StrategyTTL, s)

	_, err = ParseCacheStrategy("fifo")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}
