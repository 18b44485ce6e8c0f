// Package indexer embeds stored script content and persists the vectors.
//
// A run walks every selected content item and decides, per item:
//
//  1. Skip: the stored EmbeddingRecord for the model has the same content
//     hash (unless Options.Force is set)
//  2. Cache: the embedding cache already holds a vector for the text
//  3. Stream: short items go through batch.Processor.ProcessStream
//  4. Chunk: items longer than the splitter's chunk size are split,
//     embedded per chunk and averaged into one vector
//
// Every produced vector is checked against the model's dimension, written to
// the cache and stored as the item's EmbeddingRecord. A failing item is
// counted and reported in Statistics.ErrorMessages without stopping the run.
//
// # Basic Usage
//
//	idx := indexer.New(store, pipe, chunkedProcessor, logger)
//
//	stats, err := idx.IndexEmbeddings(ctx, indexer.Options{
//	    Types: []types.ContentType{types.TypeDialogue, types.TypeAction},
//	    Progress: func(p indexer.Progress) {
//	        fmt.Printf("%d/%d\n", p.Done, p.Total)
//	    },
//	})
//
//	fmt.Printf("embedded %d, skipped %d in %v\n", stats.Embedded, stats.Skipped, stats.Duration)
//
// # Concurrency
//
// Only one run may be active per Indexer. A concurrent call returns
// ErrIndexInProgress immediately. Provider concurrency is bounded by the
// batch processor's MaxConcurrent setting.
package indexer
