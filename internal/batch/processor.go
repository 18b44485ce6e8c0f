package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/internal/metrics"
	"github.com/dshills/scriptrag/pkg/types"
)

// Config controls batching, concurrency and retry
type Config struct {
	BatchSize     int           // items per provider call
	MaxConcurrent int           // provider calls in flight
	RetryAttempts int           // attempts per call, including the first
	RetryDelay    time.Duration // delay after the first failure, doubled per attempt
	MaxRetryDelay time.Duration
	CallTimeout   time.Duration // bound on a single provider call
}

// DefaultConfig returns the default processor configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		MaxConcurrent: 4,
		RetryAttempts: embedder.DefaultMaxRetries,
		RetryDelay:    embedder.DefaultBaseDelay,
		MaxRetryDelay: embedder.DefaultMaxDelay,
		CallTimeout:   embedder.DefaultCallTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// Processor turns BatchItems into vectors through an embedding provider.
// At most MaxConcurrent provider calls are in flight across all methods.
// A Processor is safe for concurrent use.
type Processor struct {
	provider embedder.Provider
	cfg      Config
	sem      *semaphore.Weighted
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithMetrics records provider calls, retries and item outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the processor logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a Processor around provider
func NewProcessor(provider embedder.Provider, cfg Config, opts ...Option) *Processor {
	cfg = cfg.withDefaults()
	p := &Processor{
		provider: provider,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration
func (p *Processor) Config() Config { return p.cfg }

// Provider returns the underlying provider
func (p *Processor) Provider() embedder.Provider { return p.provider }

func (p *Processor) retryConfig() embedder.RetryConfig {
	return embedder.RetryConfig{
		MaxRetries: p.cfg.RetryAttempts,
		BaseDelay:  p.cfg.RetryDelay,
		MaxDelay:   p.cfg.MaxRetryDelay,
		Multiplier: embedder.BackoffMultiplier,
		OnRetry: func(attempt int, err error) {
			p.metrics.ProviderRetry()
			p.logger.Debug("retrying provider call",
				"provider", p.provider.Name(), "attempt", attempt, "error", err)
		},
	}
}

// call issues one provider request with retry. Each attempt is bounded by
// CallTimeout. The returned slice always has len(texts) entries.
func (p *Processor) call(ctx context.Context, texts []string, model string) ([][]float32, error) {
	vectors, err := embedder.RetryWithBackoff(ctx, p.retryConfig(), func(ctx context.Context) ([][]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		vecs, err := p.provider.EmbedBatch(callCtx, texts, model)
		p.metrics.ProviderCall(p.provider.Name(), time.Since(start), err)
		return vecs, err
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	copy(out, vectors)
	return out, nil
}

// runBatch embeds one batch and maps vectors back to items positionally.
// Blank items fail individually without being sent.
func (p *Processor) runBatch(ctx context.Context, items []types.BatchItem, model string) []types.BatchResult {
	results := make([]types.BatchResult, len(items))
	texts := make([]string, 0, len(items))
	index := make([]int, 0, len(items))

	for i, item := range items {
		results[i] = types.BatchResult{ID: item.ID, Metadata: item.Metadata}
		if strings.TrimSpace(item.Text) == "" {
			results[i].Err = fmt.Errorf("item %s: %w", item.ID, types.ErrEmptyContent)
			continue
		}
		texts = append(texts, item.Text)
		index = append(index, i)
	}

	if len(texts) > 0 {
		vectors, err := p.call(ctx, texts, model)
		for j, i := range index {
			switch {
			case err != nil:
				results[i].Err = fmt.Errorf("%w: %w", types.ErrGenerationFailed, err)
			case len(vectors[j]) == 0:
				results[i].Err = fmt.Errorf("item %s: %w", items[i].ID, types.ErrMissingEmbedding)
			default:
				results[i].Vector = vectors[j]
			}
		}
	}

	ok := 0
	for i := range results {
		if results[i].OK() {
			ok++
		}
	}
	p.metrics.ItemsProcessed(ok, len(results)-ok)
	return results
}

// processOne runs a batch under the concurrency bound
func (p *Processor) processOne(ctx context.Context, items []types.BatchItem, model string) ([]types.BatchResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return p.runBatch(ctx, items, model), nil
}

// Split divides items into consecutive batches of at most BatchSize
func (p *Processor) Split(items []types.BatchItem) [][]types.BatchItem {
	size := p.cfg.BatchSize
	batches := make([][]types.BatchItem, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// ProcessBatch embeds items one batch at a time, one provider call per batch.
// Results follow input order. A failed call fails every item of its batch;
// a missing vector fails only its own item. On cancellation the results of
// the batches completed so far are returned with the context error.
func (p *Processor) ProcessBatch(ctx context.Context, items []types.BatchItem, model string) ([]types.BatchResult, error) {
	results := make([]types.BatchResult, 0, len(items))
	for _, b := range p.Split(items) {
		res, err := p.processOne(ctx, b, model)
		if err != nil {
			return results, err
		}
		results = append(results, res...)
	}
	return results, nil
}

// ProcessSingleWithRetry embeds one item. Exhausted retries produce an error
// result rather than an error return.
func (p *Processor) ProcessSingleWithRetry(ctx context.Context, item types.BatchItem, model string) types.BatchResult {
	res, err := p.processOne(ctx, []types.BatchItem{item}, model)
	if err != nil {
		return types.BatchResult{ID: item.ID, Metadata: item.Metadata, Err: err}
	}
	return res[0]
}

// ProcessParallel embeds batches concurrently. Results arrive in batch
// completion order; callers needing a stable order must sort by ID.
// On cancellation no further batches start and the completed results are
// returned together with the context error.
func (p *Processor) ProcessParallel(ctx context.Context, items []types.BatchItem, model string) ([]types.BatchResult, error) {
	var (
		mu      sync.Mutex
		results = make([]types.BatchResult, 0, len(items))
	)

	var g errgroup.Group
	for _, b := range p.Split(items) {
		g.Go(func() error {
			res, err := p.processOne(ctx, b, model)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res...)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// StreamOption configures ProcessStream
type StreamOption func(*streamConfig)

type streamConfig struct {
	progress func(processed int)
}

// WithProgress reports the cumulative number of processed items after each batch
func WithProgress(fn func(processed int)) StreamOption {
	return func(c *streamConfig) { c.progress = fn }
}

// ProcessStream consumes items until in is closed or ctx is done, embedding
// them in batches of BatchSize. Results are emitted as each batch completes.
// A final partial batch is still processed. Every item received from in
// yields one result: items still waiting for a batch when ctx is done get
// the context error. The returned channel is closed once all in-flight
// batches finish; callers must drain it.
func (p *Processor) ProcessStream(ctx context.Context, in <-chan types.BatchItem, model string, opts ...StreamOption) <-chan types.BatchResult {
	var cfg streamConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	out := make(chan types.BatchResult, p.cfg.BatchSize)
	go func() {
		defer close(out)

		var (
			wg        sync.WaitGroup
			progMu    sync.Mutex
			processed int
		)

		// abandon answers items taken from in that will never reach the provider
		abandon := func(batch []types.BatchItem, err error) {
			for _, item := range batch {
				out <- types.BatchResult{ID: item.ID, Metadata: item.Metadata, Err: err}
			}
		}

		dispatch := func(batch []types.BatchItem) bool {
			// Acquire before spawning so an unbounded source cannot pile up goroutines.
			if err := p.sem.Acquire(ctx, 1); err != nil {
				abandon(batch, err)
				return false
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer p.sem.Release(1)

				results := p.runBatch(ctx, batch, model)
				for _, r := range results {
					out <- r
				}
				progMu.Lock()
				processed += len(results)
				if cfg.progress != nil {
					cfg.progress(processed)
				}
				progMu.Unlock()
			}()
			return true
		}

		batch := make([]types.BatchItem, 0, p.cfg.BatchSize)
	loop:
		for {
			select {
			case <-ctx.Done():
				abandon(batch, ctx.Err())
				break loop
			case item, ok := <-in:
				if !ok {
					if len(batch) > 0 {
						dispatch(batch)
					}
					break loop
				}
				batch = append(batch, item)
				if len(batch) == p.cfg.BatchSize {
					if !dispatch(batch) {
						break loop
					}
					batch = make([]types.BatchItem, 0, p.cfg.BatchSize)
				}
			}
		}
		wg.Wait()
	}()
	return out
}

// OptimizeBatchSize greedily packs items into batches that stay within
// maxTokens (estimated as characters / 4) and BatchSize items. An item that
// alone exceeds the budget becomes its own batch.
func (p *Processor) OptimizeBatchSize(items []types.BatchItem, maxTokens int) [][]types.BatchItem {
	var (
		batches [][]types.BatchItem
		current []types.BatchItem
		tokens  int
	)
	for _, item := range items {
		t := types.EstimateTokens(item.Text)
		if len(current) > 0 && (len(current) >= p.cfg.BatchSize || (maxTokens > 0 && tokens+t > maxTokens)) {
			batches = append(batches, current)
			current, tokens = nil, 0
		}
		current = append(current, item)
		tokens += t
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
