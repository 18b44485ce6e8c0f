// Package pipeline generates embeddings through a content-addressed cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dshills/scriptrag/internal/batch"
	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/pkg/types"
)

// Pipeline checks the cache before delegating to the batch layer and stores
// every new vector it produces. It also tracks the dimension of each model:
// the first vector seen for a model fixes it.
type Pipeline struct {
	cache     *embedder.Cache
	processor *batch.Processor
	logger    *slog.Logger

	mu         sync.RWMutex
	dimensions map[string]int
}

// New creates a Pipeline. A nil cache disables caching.
func New(cache *embedder.Cache, processor *batch.Processor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cache:      cache,
		processor:  processor,
		logger:     logger,
		dimensions: make(map[string]int),
	}
}

// Model resolves an empty model name to the provider default
func (p *Pipeline) Model(model string) string {
	return embedder.ModelOrDefault(p.processor.Provider(), model)
}

// Dimension returns the recorded dimension for model
func (p *Pipeline) Dimension(model string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.dimensions[p.Model(model)]
	return d, ok
}

// SetDimension records a known dimension for model, for example one loaded
// from storage at startup. It fails if a different dimension is already set.
func (p *Pipeline) SetDimension(model string, dim int) error {
	_, err := p.checkDimension(p.Model(model), make([]float32, dim))
	return err
}

func (p *Pipeline) checkDimension(model string, vector []float32) (int, error) {
	if len(vector) == 0 {
		return 0, types.ErrEmptyVector
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	want, ok := p.dimensions[model]
	if !ok {
		p.dimensions[model] = len(vector)
		return len(vector), nil
	}
	if want != len(vector) {
		return 0, fmt.Errorf("%w: model %s has dimension %d, got %d",
			types.ErrDimensionMismatch, model, want, len(vector))
	}
	return want, nil
}

// Lookup returns a cached vector for text without calling the provider
func (p *Pipeline) Lookup(ctx context.Context, text, model string) ([]float32, bool) {
	if p.cache == nil {
		return nil, false
	}
	return p.cache.Get(ctx, embedder.ComputeHash(text), p.Model(model))
}

// Remember validates a vector produced outside the pipeline and caches it
func (p *Pipeline) Remember(ctx context.Context, text, model string, vector []float32) error {
	model = p.Model(model)
	if _, err := p.checkDimension(model, vector); err != nil {
		return err
	}
	if p.cache == nil {
		return nil
	}
	if err := p.cache.Put(ctx, embedder.ComputeHash(text), model, vector); err != nil {
		p.logger.Warn("failed to cache embedding", "model", model, "error", err)
	}
	return nil
}

// Generate returns the embedding of text
func (p *Pipeline) Generate(ctx context.Context, text, model string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}
	vectors, err := p.GenerateBatch(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateBatch returns one vector per text in input order. Identical texts
// share one provider request. Any failure fails the whole call.
func (p *Pipeline) GenerateBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	model = p.Model(model)
	out := make([][]float32, len(texts))

	var (
		misses []types.BatchItem
		waiter = make(map[string][]int)
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("text %d: %w", i, types.ErrEmptyContent)
		}
		hash := embedder.ComputeHash(text)
		if p.cache != nil {
			if v, ok := p.cache.Get(ctx, hash, model); ok {
				out[i] = v
				continue
			}
		}
		if _, seen := waiter[hash]; !seen {
			misses = append(misses, types.BatchItem{ID: hash, Text: text})
		}
		waiter[hash] = append(waiter[hash], i)
	}

	if len(misses) == 0 {
		return out, nil
	}

	results, err := p.processor.ProcessBatch(ctx, misses, model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrGenerationFailed, err)
	}

	for _, r := range results {
		if r.Err != nil {
			if errors.Is(r.Err, types.ErrGenerationFailed) {
				return nil, r.Err
			}
			return nil, fmt.Errorf("%w: %w", types.ErrGenerationFailed, r.Err)
		}
		if _, err := p.checkDimension(model, r.Vector); err != nil {
			return nil, err
		}
		if p.cache != nil {
			if err := p.cache.Put(ctx, r.ID, model, r.Vector); err != nil {
				p.logger.Warn("failed to cache embedding", "model", model, "error", err)
			}
		}
		for _, i := range waiter[r.ID] {
			out[i] = copyVector(r.Vector)
		}
	}
	return out, nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
