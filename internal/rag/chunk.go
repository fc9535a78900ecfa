// Package rag covers document ingestion and context retrieval for
// retrieval-augmented question generation: splitting extracted text into
// overlapping chunks, indexing them, and assembling a bounded context
// string for a topic.
package rag

import "fmt"

// Default window parameters for chunking.
const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 150
)

// ChunkConfigError reports invalid chunking parameters. It is fatal:
// a bad size/overlap pair would otherwise never terminate.
type ChunkConfigError struct {
	Size    int
	Overlap int
}

func (e *ChunkConfigError) Error() string {
	return fmt.Sprintf("invalid chunk config: size=%d overlap=%d (need size > 0 and 0 <= overlap < size)", e.Size, e.Overlap)
}

// Chunk splits text into overlapping windows of at most size characters.
// Window starts advance by size-overlap, so consecutive windows share
// exactly overlap characters except possibly the last. Windows are
// measured in runes, never bytes, so multibyte text is never split
// mid-character. Empty input yields no chunks.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, &ChunkConfigError{Size: size, Overlap: overlap}
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
