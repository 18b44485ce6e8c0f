package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClampsOptions(t *testing.T) {
	tests := []struct {
		name        string
		opts        []Option
		wantSize    int
		wantOverlap int
	}{
		{"defaults", nil, DefaultChunkSize, DefaultOverlap},
		{"custom", []Option{WithChunkSize(100), WithOverlap(20)}, 100, 20},
		{"non-positive size", []Option{WithChunkSize(0), WithOverlap(10)}, DefaultChunkSize, 10},
		{"negative overlap", []Option{WithChunkSize(100), WithOverlap(-5)}, 100, 0},
		{"overlap not smaller than size", []Option{WithChunkSize(100), WithOverlap(100)}, 100, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.opts...)
			assert.Equal(t, tt.wantSize, s.ChunkSize())
			assert.Equal(t, tt.wantOverlap, s.Overlap())
		})
	}
}

func TestShortTextIsIntact(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(20))
	text := "INT. KITCHEN - NIGHT. John pours coffee."

	chunks := s.Chunk("scene-1", text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, "scene-1#0", chunks[0].ID())
	assert.False(t, s.NeedsSplit(text))

	exact := strings.Repeat("a", 100)
	assert.Len(t, s.Split(exact), 1)
}

func TestBlankTextYieldsNothing(t *testing.T) {
	s := New()
	assert.Empty(t, s.Chunk("x", ""))
	assert.Empty(t, s.Chunk("x", "  \n\t "))
}

func TestHardCutWithoutBoundaries(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(20))
	text := strings.Repeat("x", 250)

	chunks := s.Chunk("long", text)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 100)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "long", c.ParentID)
		assert.NoError(t, c.Validate())
	}
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 80, chunks[1].Start, "next window starts overlap characters back")
	assert.Equal(t, 160, chunks[2].Start)
	assert.Equal(t, 250, chunks[2].End)
}

func TestPrefersSentenceBoundary(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(10))
	first := strings.Repeat("a", 85) + "."
	text := first + " " + strings.Repeat("b", 150)

	chunks := s.Chunk("p", text)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, first, chunks[0].Text)
	assert.Equal(t, 86, chunks[0].End)
}

func TestPrefersParagraphOverSentence(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(0))
	text := strings.Repeat("a", 82) + "\n\n" + strings.Repeat("b", 10) + ". " + strings.Repeat("c", 100)

	chunks := s.Chunk("p", text)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 84, chunks[0].End)
	assert.Equal(t, strings.Repeat("a", 82), chunks[0].Text)
}

func TestBoundarySearchMayExtendSlightly(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(0))
	text := strings.Repeat("a", 104) + ". " + strings.Repeat("b", 100)

	chunks := s.Chunk("p", text)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 105, chunks[0].End)
	assert.LessOrEqual(t, len([]rune(chunks[0].Text)), 110)
}

func TestChunksCoverText(t *testing.T) {
	s := New(WithChunkSize(50), WithOverlap(10))
	text := strings.Repeat("The fox runs. It jumps over the fence!\n", 20)

	chunks := s.Chunk("c", text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].End)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Start, chunks[i-1].Start, "windows always advance")
		assert.LessOrEqual(t, chunks[i].Start, chunks[i-1].End, "no gaps between windows")
	}
}

func TestRuneSafety(t *testing.T) {
	s := New(WithChunkSize(10), WithOverlap(2))
	text := strings.Repeat("é", 25)

	for _, c := range s.Split(text) {
		assert.True(t, strings.Trim(c, "é") == "", "chunks contain whole runes only")
		assert.LessOrEqual(t, len([]rune(c)), 10)
	}
}
