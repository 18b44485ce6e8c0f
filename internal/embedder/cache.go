package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/scriptrag/internal/metrics"
	"github.com/dshills/scriptrag/pkg/types"
)

// CacheStrategy selects how entries leave the cache besides capacity eviction
type CacheStrategy string

const (
	// StrategyLRU keeps entries until they are the least recently used at capacity
	StrategyLRU CacheStrategy = "lru"
	// StrategyTTL additionally expires entries older than CacheConfig.MaxAge
	StrategyTTL CacheStrategy = "ttl"
)

const (
	defaultCacheEntries = 10000
	cacheStripes        = 64
)

// CacheConfig configures the embedding cache
type CacheConfig struct {
	MaxEntries int
	Strategy   CacheStrategy
	MaxAge     time.Duration
}

// DefaultCacheConfig returns an LRU cache of 10k entries
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{MaxEntries: defaultCacheEntries, Strategy: StrategyLRU}
}

// ParseCacheStrategy parses a strategy name; empty means LRU
func ParseCacheStrategy(s string) (CacheStrategy, error) {
	switch CacheStrategy(s) {
	case "", StrategyLRU:
		return StrategyLRU, nil
	case StrategyTTL, "age":
		return StrategyTTL, nil
	}
	return "", fmt.Errorf("%w: cache strategy %q", types.ErrInvalidInput, s)
}

// CacheKey identifies a cached vector. The same text embedded by two models
// yields two independent entries.
type CacheKey struct {
	Hash  string
	Model string
}

// CachedVector is the durable representation of a cache entry
type CachedVector struct {
	Hash       string
	Model      string
	Vector     []float32
	CreatedAt  time.Time
	LastAccess time.Time
}

// DurableStore persists cache entries across restarts
type DurableStore interface {
	// GetCachedVector returns nil, nil on a miss
	GetCachedVector(ctx context.Context, hash, model string) (*CachedVector, error)
	PutCachedVector(ctx context.Context, v CachedVector) error
	DeleteCachedVectorsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type cacheEntry struct {
	vector     []float32
	createdAt  time.Time
	lastAccess atomic.Int64
}

// CacheStats is a point-in-time view of the cache
type CacheStats struct {
	Strategy   CacheStrategy
	Entries    int
	Bytes      int64
	Hits       int64
	Misses     int64
	Evictions  int64
	HitRate    float64
	OldestAge  time.Duration
	NewestAge  time.Duration
	AverageAge time.Duration
}

// CleanupResult counts entries removed per layer
type CleanupResult struct {
	Memory  int
	Durable int
}

// Cache is a two-layer embedding cache: a bounded in-memory LRU in front of
// an optional durable store. Writes for the same key are serialized; readers
// always receive a copy of the stored vector.
type Cache struct {
	cfg     CacheConfig
	cache   *lru.Cache[CacheKey, *cacheEntry]
	durable DurableStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	stripes [cacheStripes]sync.Mutex

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithDurableStore backs the memory layer with a persistent store
func WithDurableStore(s DurableStore) CacheOption {
	return func(c *Cache) { c.durable = s }
}

// WithCacheMetrics records hits and misses
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithCacheLogger sets the logger used for durable-layer failures
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a new embedding cache
func NewCache(cfg CacheConfig, opts ...CacheOption) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultCacheEntries
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLRU
	}
	cache, err := lru.New[CacheKey, *cacheEntry](cfg.MaxEntries)
	if err != nil {
		cache, _ = lru.New[CacheKey, *cacheEntry](defaultCacheEntries)
	}
	c := &Cache{
		cfg:    cfg,
		cache:  cache,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) lock(key CacheKey) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.Hash))
	_, _ = h.Write([]byte(key.Model))
	return &c.stripes[h.Sum32()%cacheStripes]
}

func (c *Cache) expired(createdAt time.Time) bool {
	if c.cfg.Strategy != StrategyTTL || c.cfg.MaxAge <= 0 {
		return false
	}
	return c.now().Sub(createdAt) > c.cfg.MaxAge
}

// Get returns a copy of the cached vector for hash under model
func (c *Cache) Get(ctx context.Context, hash, model string) ([]float32, bool) {
	key := CacheKey{Hash: hash, Model: model}

	if e, ok := c.cache.Get(key); ok {
		if !c.expired(e.createdAt) {
			e.lastAccess.Store(c.now().UnixNano())
			c.hits.Add(1)
			c.metrics.CacheHit("memory")
			return copyVector(e.vector), true
		}
		c.cache.Remove(key)
	}

	if c.durable != nil {
		if v, ok := c.promote(ctx, key); ok {
			c.hits.Add(1)
			c.metrics.CacheHit("durable")
			return v, true
		}
	}

	c.misses.Add(1)
	c.metrics.CacheMiss(model)
	return nil, false
}

func (c *Cache) promote(ctx context.Context, key CacheKey) ([]float32, bool) {
	mu := c.lock(key)
	mu.Lock()
	defer mu.Unlock()

	cv, err := c.durable.GetCachedVector(ctx, key.Hash, key.Model)
	if err != nil {
		c.logger.Warn("durable cache lookup failed", "model", key.Model, "error", err)
		return nil, false
	}
	if cv == nil || len(cv.Vector) == 0 || c.expired(cv.CreatedAt) {
		return nil, false
	}

	e := &cacheEntry{vector: copyVector(cv.Vector), createdAt: cv.CreatedAt}
	e.lastAccess.Store(c.now().UnixNano())
	if c.cache.Add(key, e) {
		c.evictions.Add(1)
	}
	return copyVector(cv.Vector), true
}

// Put stores a copy of vector for hash under model in both layers
func (c *Cache) Put(ctx context.Context, hash, model string, vector []float32) error {
	if len(vector) == 0 {
		return types.ErrEmptyVector
	}
	key := CacheKey{Hash: hash, Model: model}
	now := c.now()

	mu := c.lock(key)
	mu.Lock()
	defer mu.Unlock()

	e := &cacheEntry{vector: copyVector(vector), createdAt: now}
	e.lastAccess.Store(now.UnixNano())
	if c.cache.Add(key, e) {
		c.evictions.Add(1)
	}

	if c.durable != nil {
		err := c.durable.PutCachedVector(ctx, CachedVector{
			Hash:       hash,
			Model:      model,
			Vector:     e.vector,
			CreatedAt:  now,
			LastAccess: now,
		})
		if err != nil {
			return fmt.Errorf("persist cache entry: %w", err)
		}
	}
	return nil
}

// Len returns the number of in-memory entries
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Clear empties the memory layer and resets counters
func (c *Cache) Clear() {
	c.cache.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// Stats returns size, hit and age statistics for the memory layer
func (c *Cache) Stats() CacheStats {
	stats := CacheStats{
		Strategy:  c.cfg.Strategy,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	now := c.now()
	var totalAge time.Duration
	for _, key := range c.cache.Keys() {
		e, ok := c.cache.Peek(key)
		if !ok {
			continue
		}
		age := now.Sub(e.createdAt)
		if stats.Entries == 0 || age > stats.OldestAge {
			stats.OldestAge = age
		}
		if stats.Entries == 0 || age < stats.NewestAge {
			stats.NewestAge = age
		}
		totalAge += age
		stats.Entries++
		stats.Bytes += int64(len(e.vector)) * 4
	}
	if stats.Entries > 0 {
		stats.AverageAge = totalAge / time.Duration(stats.Entries)
	}
	return stats
}

// CleanupOlderThan removes entries created more than maxAge ago from both layers
func (c *Cache) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (CleanupResult, error) {
	var res CleanupResult
	if maxAge < 0 {
		return res, fmt.Errorf("%w: negative age %s", types.ErrInvalidInput, maxAge)
	}
	cutoff := c.now().Add(-maxAge)

	for _, key := range c.cache.Keys() {
		e, ok := c.cache.Peek(key)
		if ok && e.createdAt.Before(cutoff) {
			c.cache.Remove(key)
			res.Memory++
		}
	}

	if c.durable != nil {
		n, err := c.durable.DeleteCachedVectorsOlderThan(ctx, cutoff)
		if err != nil {
			return res, fmt.Errorf("cleanup durable cache: %w", err)
		}
		res.Durable = n
	}
	return res, nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
