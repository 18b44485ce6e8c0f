package storage

import (
	"context"
	"time"

	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/pkg/types"
)

// Storage defines the interface for persisting content items, their
// embeddings and the durable layer of the embedding cache
type Storage interface {
	// Content operations
	UpsertContent(ctx context.Context, item *types.ContentItem) error
	GetContent(ctx context.Context, typ types.ContentType, id string) (*types.ContentItem, error)
	ListContent(ctx context.Context, contentTypes []types.ContentType) ([]*types.ContentItem, error)
	SearchContent(ctx context.Context, q types.ContentQuery) ([]*types.ContentItem, error)
	DeleteContent(ctx context.Context, typ types.ContentType, id string) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, rec *types.EmbeddingRecord) error
	GetEmbedding(ctx context.Context, typ types.ContentType, id, model string) (*types.EmbeddingRecord, error)
	ListEmbeddings(ctx context.Context, model string, contentTypes []types.ContentType) ([]*types.EmbeddingRecord, error)
	DeleteEmbedding(ctx context.Context, typ types.ContentType, id, model string) error
	DeleteEmbeddingsOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Embedding cache durable layer
	GetCachedVector(ctx context.Context, hash, model string) (*embedder.CachedVector, error)
	PutCachedVector(ctx context.Context, v embedder.CachedVector) error
	DeleteCachedVectorsOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Status
	GetStatus(ctx context.Context) (*Status, error)

	// Lifecycle
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Status summarizes what the store currently holds
type Status struct {
	ContentCounts   map[types.ContentType]int
	ContentTotal    int
	EmbeddingCounts map[string]int // by model
	EmbeddingsTotal int
	CachedVectors   int
	Dimensions      map[string]int // by model
	LastEmbeddedAt  time.Time
	SchemaVersion   string
	BuildMode       string
	IndexSizeMB     float64
}
