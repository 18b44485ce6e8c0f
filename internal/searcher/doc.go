// Package searcher implements hybrid search over script content.
//
// A search fans out to independent sources and merges what they return:
//   - one lexical source per content type (scene, dialogue, action, ...)
//   - a semantic source that embeds the query and compares it against the
//     stored embeddings of the configured model
//
// Sources run concurrently. A source that fails is logged, counted in
// metrics and left out of the merge, so a provider outage degrades a hybrid
// search to lexical results instead of failing it.
//
// Merged results go through ranker.RankResults, which computes composite
// scores and keeps the best entry per (type, id). MinScore, Offset and Limit
// are applied to the ranked list.
//
// # Search Modes
//
//   - SearchModeHybrid (default): lexical and semantic sources
//   - SearchModeLexical: lexical sources only, no provider calls
//   - SearchModeSemantic: vector similarity only
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, pipe, rk, searcher.Config{Metric: similarity.Cosine})
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query:        "coffee",
//	    Types:        []types.ContentType{types.TypeDialogue},
//	    EntityFilter: map[string]any{"character": "SARAH"},
//	    Limit:        10,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s %s (%.2f)\n", r.Rank, r.Type, r.ID, r.CompositeScore)
//	}
//
// # Caching
//
// With Request.UseCache, complete responses are kept in an LRU cache keyed by
// a SHA-256 of the request and expire after Config.CacheTTL. Responses with a
// failed source are not cached. Call InvalidateCache after re-indexing.
package searcher
