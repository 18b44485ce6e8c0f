// Package app wires storage, the embedding pipeline, the indexer and the
// searcher into one process-wide value shared by the CLI and the MCP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/scriptrag/internal/batch"
	"github.com/dshills/scriptrag/internal/chunker"
	"github.com/dshills/scriptrag/internal/config"
	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/internal/indexer"
	"github.com/dshills/scriptrag/internal/metrics"
	"github.com/dshills/scriptrag/internal/pipeline"
	"github.com/dshills/scriptrag/internal/ranker"
	"github.com/dshills/scriptrag/internal/searcher"
	"github.com/dshills/scriptrag/internal/storage"
)

// App owns every long-lived component
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Storage  *storage.SQLiteStorage
	Provider embedder.Provider
	Cache    *embedder.Cache
	Pipeline *pipeline.Pipeline
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
}

// Status is the combined view reported by status commands
type Status struct {
	Provider     string
	Model        string
	Storage      *storage.Status
	Cache        embedder.CacheStats
	SearchCached int
}

// CleanupResult counts what a cache cleanup removed
type CleanupResult struct {
	Memory     int
	Durable    int
	Embeddings int
}

// New builds the application from cfg. A nil logger uses slog.Default.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a, err := build(cfg, logger, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, logger *slog.Logger, store *storage.SQLiteStorage) (*App, error) {
	m := metrics.New(metrics.DefaultConfig())

	provider, err := embedder.New(cfg.Embedder())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	cacheCfg := embedder.CacheConfig{
		MaxEntries: cfg.CacheMaxEntries,
		Strategy:   cfg.CacheStrategy,
		MaxAge:     cfg.CacheMaxAge,
	}
	cache := embedder.NewCache(cacheCfg,
		embedder.WithDurableStore(store),
		embedder.WithCacheMetrics(m),
		embedder.WithCacheLogger(logger.With("component", "cache")),
	)

	batchCfg := batch.Config{
		BatchSize:     cfg.BatchSize,
		MaxConcurrent: cfg.MaxConcurrent,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		MaxRetryDelay: cfg.MaxRetryDelay,
		CallTimeout:   cfg.CallTimeout,
	}
	processor := batch.NewProcessor(provider, batchCfg,
		batch.WithMetrics(m),
		batch.WithLogger(logger.With("component", "batch")),
	)

	pipe := pipeline.New(cache, processor, logger.With("component", "pipeline"))
	splitter := chunker.New(chunker.WithChunkSize(cfg.ChunkSize), chunker.WithOverlap(cfg.ChunkOverlap))

	rankCfg, err := cfg.Ranking()
	if err != nil {
		return nil, err
	}

	searchCfg := searcher.Config{
		Model:             cfg.Model,
		Metric:            cfg.Metric,
		SemanticThreshold: cfg.SemanticThreshold,
		MaxConcurrent:     cfg.MaxConcurrent,
		CacheSize:         cfg.SearchCacheSize,
		CacheTTL:          cfg.SearchCacheTTL,
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Storage:  store,
		Provider: provider,
		Cache:    cache,
		Pipeline: pipe,
		Indexer: indexer.New(store, pipe, batch.NewChunkedProcessor(processor, splitter),
			logger.With("component", "indexer")),
		Searcher: searcher.NewSearcher(store, pipe, ranker.New(rankCfg), searchCfg,
			searcher.WithMetrics(m),
			searcher.WithLogger(logger.With("component", "searcher"))),
	}

	if err := a.loadDimensions(context.Background()); err != nil {
		return nil, err
	}
	logger.Info("application ready",
		"provider", provider.Name(),
		"model", pipe.Model(cfg.Model),
		"db", cfg.DBPath,
		"build_mode", storage.BuildMode)
	return a, nil
}

// loadDimensions seeds the pipeline with the dimensions already stored per
// model so a provider change cannot silently mix vector sizes
func (a *App) loadDimensions(ctx context.Context) error {
	st, err := a.Storage.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read storage status: %w", err)
	}
	for model, dim := range st.Dimensions {
		if err := a.Pipeline.SetDimension(model, dim); err != nil {
			return fmt.Errorf("stored embeddings for %s: %w", model, err)
		}
	}
	return nil
}

// Index embeds stored content and drops cached search responses that may
// now be stale
func (a *App) Index(ctx context.Context, opts indexer.Options) (*indexer.Statistics, error) {
	if opts.Model == "" {
		opts.Model = a.Config.Model
	}
	stats, err := a.Indexer.IndexEmbeddings(ctx, opts)
	if stats != nil && stats.Embedded+stats.FromCache > 0 {
		a.Searcher.InvalidateCache()
	}
	return stats, err
}

// Search runs a search request
func (a *App) Search(ctx context.Context, req searcher.Request) (*searcher.Response, error) {
	return a.Searcher.Search(ctx, req)
}

// Status reports storage, cache and provider state
func (a *App) Status(ctx context.Context) (*Status, error) {
	st, err := a.Storage.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage status: %w", err)
	}
	return &Status{
		Provider:     a.Provider.Name(),
		Model:        a.Pipeline.Model(a.Config.Model),
		Storage:      st,
		Cache:        a.Cache.Stats(),
		SearchCached: a.Searcher.CacheLen(),
	}, nil
}

// CleanupCache removes cache entries older than maxAge from both cache
// layers. With pruneEmbeddings set, stored embeddings older than maxAge are
// removed as well and the search cache is invalidated.
func (a *App) CleanupCache(ctx context.Context, maxAge time.Duration, pruneEmbeddings bool) (CleanupResult, error) {
	res, err := a.Cache.CleanupOlderThan(ctx, maxAge)
	out := CleanupResult{Memory: res.Memory, Durable: res.Durable}
	if err != nil {
		return out, err
	}
	if pruneEmbeddings {
		n, err := a.Storage.DeleteEmbeddingsOlderThan(ctx, time.Now().Add(-maxAge))
		if err != nil {
			return out, fmt.Errorf("failed to prune embeddings: %w", err)
		}
		out.Embeddings = n
		if n > 0 {
			a.Searcher.InvalidateCache()
		}
	}
	a.Logger.Info("cache cleanup complete",
		"max_age", maxAge,
		"memory", out.Memory,
		"durable", out.Durable,
		"embeddings", out.Embeddings)
	return out, nil
}

// Close releases the storage handle
func (a *App) Close() error {
	return a.Storage.Close()
}
