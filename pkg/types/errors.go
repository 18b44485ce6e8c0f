package types

import "errors"

// Domain errors shared by the retrieval components
var (
	// Input errors, reported immediately and never retried
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrEmptyVector       = errors.New("embedding vector is empty")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrUnknownCategory   = errors.New("unknown entity category")
	ErrUnknownMetric     = errors.New("unknown similarity metric")

	// Generation errors
	ErrGenerationFailed = errors.New("embedding generation failed")
	ErrMissingEmbedding = errors.New("no embedding returned for item")
	ErrAllChunksFailed  = errors.New("all chunks failed")
)

// Result validation errors
var (
	ErrInvalidResultID       = errors.New("invalid result ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("composite score must not exceed 1")
)
