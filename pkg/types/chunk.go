package types

import (
	"errors"
	"fmt"
	"strings"
)

// ChunkSeparator joins a parent id and chunk index into a chunk id
const ChunkSeparator = "#"

// Chunk is one window of a text too long to embed in a single call
type Chunk struct {
	ParentID string
	Index    int
	Text     string

	// Rune offsets into the parent text, End exclusive
	Start int
	End   int

	TokenCount int
}

// ChunkID returns the id used for the index-th chunk of parentID
func ChunkID(parentID string, index int) string {
	return fmt.Sprintf("%s%s%d", parentID, ChunkSeparator, index)
}

// ID returns the chunk's own identifier
func (c *Chunk) ID() string {
	return ChunkID(c.ParentID, c.Index)
}

// ComputeTokenCount estimates the number of tokens in the chunk
func (c *Chunk) ComputeTokenCount() int {
	c.TokenCount = EstimateTokens(c.Text)
	return c.TokenCount
}

// Validate checks the chunk offsets and content
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.Start < 0 || c.End <= c.Start {
		return errors.New("chunk offsets out of order")
	}
	if c.Index < 0 {
		return errors.New("chunk index must not be negative")
	}
	return nil
}
