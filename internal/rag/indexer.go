package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/furkankasim16/knowledge-bot/internal/vector"
)

// Indexer chunks extracted document text and writes it to the vector index.
type Indexer struct {
	index     vector.Index
	extractor Extractor
	size      int
	overlap   int
}

// NewIndexer creates an Indexer. Non-positive size and negative overlap
// select the defaults; an explicit zero overlap is honored.
func NewIndexer(index vector.Index, extractor Extractor, size, overlap int) *Indexer {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if extractor == nil {
		extractor = PlainText{}
	}
	return &Indexer{index: index, extractor: extractor, size: size, overlap: overlap}
}

// IndexDocument extracts, chunks, and indexes a document under the given
// topic, returning the number of chunks written. An empty document indexes
// zero chunks and is not an error.
func (ix *Indexer) IndexDocument(ctx context.Context, filename string, raw []byte, topic string) (int, error) {
	text := ix.extractor.Extract(filename, raw)
	if text == "" {
		slog.Warn("no text extracted, nothing to index", "filename", filename)
		return 0, nil
	}

	pieces, err := Chunk(text, ix.size, ix.overlap)
	if err != nil {
		return 0, err
	}

	chunks := make([]vector.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = vector.Chunk{
			DocID: filename,
			Index: i,
			Text:  piece,
			Topic: topic,
		}
	}
	if err := ix.index.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index %s: %w", filename, err)
	}

	slog.Info("indexed document", "filename", filename, "topic", topic, "chunks", len(chunks))
	return len(chunks), nil
}

// DeleteDocument removes all chunks of a document from the index.
func (ix *Indexer) DeleteDocument(ctx context.Context, docID string) error {
	return ix.index.DeleteDocument(ctx, docID)
}

// Reset clears the whole index.
func (ix *Indexer) Reset(ctx context.Context) error {
	return ix.index.Reset(ctx)
}
