// Package vector provides the similarity index used for retrieval-augmented
// question generation. Chunks of source documents are embedded and stored in
// Qdrant together with their document, position, and topic metadata.
package vector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Chunk is one unit of indexed text.
type Chunk struct {
	DocID string
	Index int
	Text  string
	Topic string
}

// Passage is a retrieved chunk with its similarity score.
type Passage struct {
	Text       string  `json:"text"`
	DocID      string  `json:"doc_id"`
	ChunkIndex int     `json:"chunk"`
	Topic      string  `json:"topic"`
	Score      float64 `json:"score"`
}

// Index stores chunks and answers similarity queries. An empty topic in
// Query means no topic filter.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
	Query(ctx context.Context, text string, k int, topic string) ([]Passage, error)
	DeleteDocument(ctx context.Context, docID string) error
	Reset(ctx context.Context) error
	TopicCounts(ctx context.Context) (map[string]int, error)
}

// Embedder turns texts into vectors. The embedding model itself is a black
// box behind an OpenAI-compatible endpoint.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds Qdrant connection settings.
type Config struct {
	URL        string
	Collection string
	VectorDim  int
}

// Validate checks that the config is usable before any network call is made.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("vector store URL is required")
	}
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid vector store URL %q: expected absolute URL like http://localhost:6333", c.URL)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("vector store collection name is required")
	}
	if c.VectorDim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", c.VectorDim)
	}
	return nil
}

// OpError reports a failed index operation.
type OpError struct {
	Op     string
	Status int
	Body   string
	Cause  error
}

func (e *OpError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("qdrant %s: status=%d body=%q", e.Op, e.Status, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("qdrant %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("qdrant %s failed", e.Op)
}

func (e *OpError) Unwrap() error { return e.Cause }
