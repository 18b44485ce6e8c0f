// Package types provides shared type definitions for the scriptrag retrieval core.
//
// This package defines the records that flow between the embedding, lexical,
// similarity and ranking components: content items, embedding records, batch
// items/results and search results.
//
// # Content Items
//
// ContentItem is one unit of retrievable screenplay text. Its Type is one of a
// closed set of content types:
//
//	item := &types.ContentItem{
//	    ID:       "d42",
//	    Type:     types.TypeDialogue,
//	    Text:     "We're going to need a bigger boat.",
//	    Metadata: map[string]any{"character": "BRODY", "sequence": 42},
//	}
//
// Character, location and object records are "entities"; lookups against them
// must first pass ValidateEntityCategory.
//
// # Results
//
// SearchResult is produced by a lexical or vector-similarity source. The hybrid
// ranker turns a set of them into RankedResult values carrying a composite
// score and a 1-based rank. Results are identified by Key(), the (type, id)
// pair used for deduplication.
//
// # Batches
//
// Every BatchItem submitted to the batch layer yields exactly one BatchResult
// with the same ID. A result carries either a vector or an error, never both.
package types
