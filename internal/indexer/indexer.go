package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/scriptrag/internal/batch"
	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/internal/pipeline"
	"github.com/dshills/scriptrag/internal/storage"
	"github.com/dshills/scriptrag/pkg/types"
)

// ErrIndexInProgress is returned when another run holds the index lock
var ErrIndexInProgress = errors.New("indexing already in progress")

// Store is the storage the indexer reads content from and writes embeddings to
type Store interface {
	ListContent(ctx context.Context, contentTypes []types.ContentType) ([]*types.ContentItem, error)
	GetEmbedding(ctx context.Context, typ types.ContentType, id, model string) (*types.EmbeddingRecord, error)
	UpsertEmbedding(ctx context.Context, rec *types.EmbeddingRecord) error
}

// Indexer embeds stored content: content -> cache -> provider -> store
type Indexer struct {
	store    Store
	pipeline *pipeline.Pipeline
	chunked  *batch.ChunkedProcessor
	logger   *slog.Logger
	lock     IndexLock
}

// Options controls one indexing run
type Options struct {
	Model    string              // Empty selects the provider default
	Force    bool                // Re-embed items whose content is unchanged
	Types    []types.ContentType // Empty means every type
	Progress func(Progress)
}

// Progress tracks indexing progress
type Progress struct {
	Total int
	Done  int
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	RunID         string
	Model         string
	ItemsTotal    int
	Embedded      int // Produced by the provider
	FromCache     int // Served by the embedding cache
	Skipped       int // Unchanged since the last run
	Chunked       int // Long items embedded as aggregated chunks
	Failed        int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer instance
func New(store Store, pipe *pipeline.Pipeline, chunked *batch.ChunkedProcessor, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:    store,
		pipeline: pipe,
		chunked:  chunked,
		logger:   logger,
	}
}

// itemKey identifies a content item across types
func itemKey(item *types.ContentItem) string {
	return string(item.Type) + "/" + item.ID
}

// run holds the state of one IndexEmbeddings call
type run struct {
	idx      *Indexer
	model    string
	opts     Options
	stats    *Statistics
	items    map[string]*types.ContentItem
	mu       sync.Mutex
	finished int
}

// IndexEmbeddings embeds every selected content item and stores one
// EmbeddingRecord per item for the model. Items whose text hash matches the
// stored record are skipped unless Force is set. Short items are streamed
// through the batch processor; items longer than the chunk size are split,
// embedded per chunk and averaged. On cancellation the statistics for the
// work completed so far are returned with the context error.
func (idx *Indexer) IndexEmbeddings(ctx context.Context, opts Options) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	r := &run{
		idx:   idx,
		model: idx.pipeline.Model(opts.Model),
		opts:  opts,
		stats: &Statistics{RunID: uuid.NewString()},
		items: make(map[string]*types.ContentItem),
	}
	r.stats.Model = r.model
	logger := idx.logger.With("run_id", r.stats.RunID, "model", r.model)

	content, err := idx.store.ListContent(ctx, opts.Types)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	r.stats.ItemsTotal = len(content)
	logger.Info("indexing embeddings", "items", len(content), "force", opts.Force)

	var short, long []types.BatchItem
	for _, item := range content {
		if err := ctx.Err(); err != nil {
			return r.finish(start), err
		}
		hash := embedder.ComputeHash(item.Text)

		if !opts.Force {
			rec, err := idx.store.GetEmbedding(ctx, item.Type, item.ID, r.model)
			switch {
			case err == nil && rec.ContentHash == hash:
				r.record(func(s *Statistics) { s.Skipped++ })
				continue
			case err != nil && !errors.Is(err, storage.ErrNotFound):
				// Unreadable records are rewritten below
				logger.Warn("failed to read stored embedding", "type", item.Type, "id", item.ID, "error", err)
			}
		}

		if vector, ok := idx.pipeline.Lookup(ctx, item.Text, r.model); ok {
			if err := r.write(ctx, item, vector); err != nil {
				r.fail(item, err)
			} else {
				r.record(func(s *Statistics) { s.FromCache++ })
			}
			continue
		}

		key := itemKey(item)
		r.items[key] = item
		bi := types.BatchItem{ID: key, Text: item.Text, Metadata: item.Metadata}
		if idx.chunked.Splitter().NeedsSplit(item.Text) {
			long = append(long, bi)
		} else {
			short = append(short, bi)
		}
	}

	if err := r.stream(ctx, short); err != nil {
		return r.finish(start), err
	}

	if len(long) > 0 {
		results, err := idx.chunked.ProcessWithChunking(ctx, long, r.model, true)
		for _, res := range results {
			if r.handle(ctx, res) {
				r.record(func(s *Statistics) { s.Chunked++ })
			}
		}
		if err != nil {
			return r.finish(start), err
		}
	}

	stats := r.finish(start)
	logger.Info("indexing complete",
		"embedded", stats.Embedded,
		"cached", stats.FromCache,
		"skipped", stats.Skipped,
		"chunked", stats.Chunked,
		"failed", stats.Failed,
		"duration", stats.Duration)
	return stats, nil
}

// stream feeds short items through ProcessStream and stores each result
func (r *run) stream(ctx context.Context, items []types.BatchItem) error {
	if len(items) == 0 {
		return nil
	}

	in := make(chan types.BatchItem)
	go func() {
		defer close(in)
		for _, item := range items {
			select {
			case in <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	for res := range r.idx.chunked.ProcessStream(ctx, in, r.model) {
		r.handle(ctx, res)
	}
	return ctx.Err()
}

// handle stores a successful result or records its failure
func (r *run) handle(ctx context.Context, res types.BatchResult) bool {
	item, ok := r.items[res.ID]
	if !ok {
		return false
	}
	if res.Err != nil {
		r.fail(item, res.Err)
		return false
	}
	if err := r.idx.pipeline.Remember(ctx, item.Text, r.model, res.Vector); err != nil {
		r.fail(item, err)
		return false
	}
	if err := r.write(ctx, item, res.Vector); err != nil {
		r.fail(item, err)
		return false
	}
	r.record(func(s *Statistics) { s.Embedded++ })
	return true
}

func (r *run) write(ctx context.Context, item *types.ContentItem, vector []float32) error {
	return r.idx.store.UpsertEmbedding(ctx, &types.EmbeddingRecord{
		EntityType:  item.Type,
		EntityID:    item.ID,
		Model:       r.model,
		Dimension:   len(vector),
		Vector:      vector,
		Content:     item.Text,
		ContentHash: embedder.ComputeHash(item.Text),
	})
}

func (r *run) fail(item *types.ContentItem, err error) {
	r.idx.logger.Warn("failed to embed item", "type", item.Type, "id", item.ID, "error", err)
	r.record(func(s *Statistics) {
		s.Failed++
		s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf("%s: %v", itemKey(item), err))
	})
}

// record updates statistics and reports progress. Every item reaches
// exactly one terminal outcome, so finished counts Done.
func (r *run) record(update func(*Statistics)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(r.stats)
	r.finished = r.stats.Skipped + r.stats.FromCache + r.stats.Embedded + r.stats.Failed
	if r.opts.Progress != nil {
		r.opts.Progress(Progress{Total: r.stats.ItemsTotal, Done: r.finished})
	}
}

func (r *run) finish(start time.Time) *Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Duration = time.Since(start)
	return r.stats
}
