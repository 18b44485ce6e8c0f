// Package chunker splits long text into overlapping windows for embedding.
//
// Text no longer than the chunk size is returned intact. Longer text is cut
// into windows of roughly the chunk size that share Overlap characters with
// their neighbours. A window prefers to end after a blank line, then after a
// sentence, and only cuts mid-sentence when neither is close to the target:
//
//	s := chunker.New(chunker.WithChunkSize(512), chunker.WithOverlap(64))
//	for _, c := range s.Chunk(item.ID, item.Text) {
//	    fmt.Println(c.ID(), c.TokenCount)
//	}
//
// Sizes are measured in runes, so multi-byte scripts are never split inside
// a character.
package chunker
