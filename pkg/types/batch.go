package types

import "time"

// BatchItem is one text submitted for embedding
type BatchItem struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// BatchResult is the outcome for exactly one BatchItem
type BatchResult struct {
	ID       string
	Vector   []float32
	Err      error
	Metadata map[string]any

	// Set only for per-chunk results
	ParentID   string
	ChunkIndex int
}

// OK reports whether the result carries a vector
func (r *BatchResult) OK() bool {
	return r.Err == nil && len(r.Vector) > 0
}

// EmbeddingRecord is the persisted embedding of one content item for one model
type EmbeddingRecord struct {
	EntityType  ContentType
	EntityID    string
	Model       string
	Dimension   int
	Vector      []float32
	Content     string // Kept for diagnostics
	ContentHash string
	CreatedAt   time.Time
}
