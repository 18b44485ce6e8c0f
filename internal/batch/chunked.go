package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/scriptrag/internal/chunker"
	"github.com/dshills/scriptrag/internal/similarity"
	"github.com/dshills/scriptrag/pkg/types"
)

// ChunkedProcessor embeds text that may exceed a single call by splitting it
// into overlapping chunks first.
type ChunkedProcessor struct {
	*Processor
	splitter *chunker.Splitter
}

// NewChunkedProcessor wraps p with a splitter
func NewChunkedProcessor(p *Processor, splitter *chunker.Splitter) *ChunkedProcessor {
	if splitter == nil {
		splitter = chunker.New()
	}
	return &ChunkedProcessor{Processor: p, splitter: splitter}
}

// Splitter returns the splitter in use
func (c *ChunkedProcessor) Splitter() *chunker.Splitter { return c.splitter }

type chunkedItem struct {
	item   types.BatchItem
	chunks []types.Chunk
}

// ProcessWithChunking embeds every chunk of every item. With aggregate set,
// the successful chunk vectors of an item are averaged into one result with
// the item's ID; an item whose chunks all failed gets ErrAllChunksFailed.
// Without aggregate, one result per chunk is returned, tagged with the parent
// ID, chunk index and a copy of the parent's metadata.
//
// Results follow input order. On cancellation the results are still returned,
// with unfinished chunks counted as failed, together with the context error.
func (c *ChunkedProcessor) ProcessWithChunking(ctx context.Context, items []types.BatchItem, model string, aggregate bool) ([]types.BatchResult, error) {
	planned := make([]chunkedItem, len(items))
	var work []types.BatchItem
	for i, item := range items {
		planned[i] = chunkedItem{item: item, chunks: c.splitter.Chunk(item.ID, item.Text)}
		for _, ch := range planned[i].chunks {
			work = append(work, types.BatchItem{ID: ch.ID(), Text: ch.Text, Metadata: item.Metadata})
		}
	}

	done, runErr := c.ProcessParallel(ctx, work, model)
	byID := make(map[string]types.BatchResult, len(done))
	for _, r := range done {
		byID[r.ID] = r
	}
	lookup := func(id string) types.BatchResult {
		if r, ok := byID[id]; ok {
			return r
		}
		err := runErr
		if err == nil {
			err = types.ErrMissingEmbedding
		}
		return types.BatchResult{ID: id, Err: err}
	}

	var results []types.BatchResult
	for _, p := range planned {
		if len(p.chunks) == 0 {
			results = append(results, types.BatchResult{
				ID:       p.item.ID,
				Metadata: p.item.Metadata,
				Err:      fmt.Errorf("item %s: %w", p.item.ID, types.ErrEmptyContent),
			})
			continue
		}

		if aggregate {
			results = append(results, aggregateChunks(p, lookup))
			continue
		}

		for _, ch := range p.chunks {
			r := lookup(ch.ID())
			results = append(results, types.BatchResult{
				ID:         ch.ID(),
				Vector:     r.Vector,
				Err:        r.Err,
				Metadata:   types.CopyMetadata(p.item.Metadata),
				ParentID:   p.item.ID,
				ChunkIndex: ch.Index,
			})
		}
	}
	return results, runErr
}

func aggregateChunks(p chunkedItem, lookup func(string) types.BatchResult) types.BatchResult {
	res := types.BatchResult{ID: p.item.ID, Metadata: p.item.Metadata}

	var (
		vectors [][]float32
		errs    []error
	)
	for _, ch := range p.chunks {
		r := lookup(ch.ID())
		if r.OK() {
			vectors = append(vectors, r.Vector)
			continue
		}
		errs = append(errs, r.Err)
	}

	if len(vectors) == 0 {
		res.Err = fmt.Errorf("item %s: %w: %w", p.item.ID, types.ErrAllChunksFailed, errors.Join(errs...))
		return res
	}

	centroid, err := similarity.Centroid(vectors)
	if err != nil {
		res.Err = fmt.Errorf("item %s: aggregate chunks: %w", p.item.ID, err)
		return res
	}
	res.Vector = centroid
	return res
}
