package types

// ResultKey identifies a result for deduplication
type ResultKey struct {
	Type ContentType
	ID   string
}

// SearchResult is one hit produced by a lexical or vector-similarity source
type SearchResult struct {
	ID         string
	Type       ContentType
	Content    string
	Score      float64 // Base score, nominally 0..1
	Metadata   map[string]any
	Highlights []string
	Source     string // Producing source, e.g. "lexical:dialogue" or "semantic"
}

// Key returns the (type, id) deduplication key
func (r *SearchResult) Key() ResultKey {
	return ResultKey{Type: r.Type, ID: r.ID}
}

// RankedResult is a SearchResult with its composite score and final position
type RankedResult struct {
	SearchResult
	CompositeScore float64 // Capped to at most 1.0
	Rank           int     // Position in result set (1-based)
}

// Validate checks if the ranked result is well formed
func (r *RankedResult) Validate() error {
	if r.ID == "" {
		return ErrInvalidResultID
	}
	if r.Rank < 1 {
		return ErrInvalidRank
	}
	if r.CompositeScore > 1 {
		return ErrInvalidRelevanceScore
	}
	if r.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
