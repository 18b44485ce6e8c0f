package chunker

import (
	"strings"
	"unicode"

	"github.com/dshills/scriptrag/pkg/types"
)

const (
	// DefaultChunkSize is the target maximum chunk length in characters
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of characters repeated between neighbours
	DefaultOverlap = 200
)

// Splitter cuts long text into overlapping windows, preferring to end each
// window at a paragraph or sentence boundary near the target size.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures a Splitter
type Option func(*Splitter)

// WithChunkSize sets the target chunk length in characters
func WithChunkSize(size int) Option {
	return func(s *Splitter) { s.chunkSize = size }
}

// WithOverlap sets the overlap between consecutive chunks
func WithOverlap(overlap int) Option {
	return func(s *Splitter) { s.overlap = overlap }
}

// New creates a Splitter. An overlap that is not smaller than the chunk size
// is reduced to a quarter of it.
func New(opts ...Option) *Splitter {
	s := &Splitter{chunkSize: DefaultChunkSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.overlap < 0 {
		s.overlap = 0
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the configured target size
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap
func (s *Splitter) Overlap() int { return s.overlap }

// NeedsSplit reports whether text is longer than one chunk
func (s *Splitter) NeedsSplit(text string) bool {
	return len([]rune(text)) > s.chunkSize
}

// Split returns the chunk texts of text
func (s *Splitter) Split(text string) []string {
	chunks := s.Chunk("", text)
	out := make([]string, len(chunks))
	for i := range chunks {
		out[i] = chunks[i].Text
	}
	return out
}

// Chunk splits text into chunks belonging to parentID. Text no longer than
// the chunk size comes back as a single chunk; blank text yields none.
func (s *Splitter) Chunk(parentID, text string) []types.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	r := []rune(text)
	n := len(r)
	if n <= s.chunkSize {
		c := types.Chunk{ParentID: parentID, Text: text, Start: 0, End: n}
		c.ComputeTokenCount()
		return []types.Chunk{c}
	}

	var chunks []types.Chunk
	start := 0
	for start < n {
		end := start + s.chunkSize
		if end >= n {
			end = n
		} else {
			end = s.boundary(r, start, end)
		}

		window := strings.TrimSpace(string(r[start:end]))
		if window != "" {
			c := types.Chunk{
				ParentID: parentID,
				Index:    len(chunks),
				Text:     window,
				Start:    start,
				End:      end,
			}
			c.ComputeTokenCount()
			chunks = append(chunks, c)
		}

		if end >= n {
			break
		}
		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// boundary picks the cut position for a window starting at start with target
// end. It searches backwards over the last fifth of the window for a
// paragraph break, then for a sentence end, then looks slightly past the
// target for a sentence end before falling back to a hard cut.
func (s *Splitter) boundary(r []rune, start, end int) int {
	window := s.chunkSize / 5
	if window < 1 {
		window = 1
	}
	lo := end - window
	if lo <= start {
		lo = start + 1
	}

	for i := end; i >= lo; i-- {
		if paragraphEnd(r, i) {
			return i
		}
	}
	for i := end; i >= lo; i-- {
		if sentenceEnd(r, i) {
			return i
		}
	}

	hi := end + window/2
	if hi > len(r) {
		hi = len(r)
	}
	for i := end + 1; i <= hi; i++ {
		if sentenceEnd(r, i) {
			return i
		}
	}
	return end
}

// paragraphEnd reports whether a cut before r[i] follows a blank line
func paragraphEnd(r []rune, i int) bool {
	return i >= 2 && i <= len(r) && r[i-1] == '\n' && r[i-2] == '\n'
}

// sentenceEnd reports whether a cut before r[i] follows terminal punctuation
// or a line break
func sentenceEnd(r []rune, i int) bool {
	if i < 1 || i > len(r) {
		return false
	}
	switch r[i-1] {
	case '\n':
		return true
	case '.', '!', '?':
		return i == len(r) || unicode.IsSpace(r[i])
	}
	return false
}
