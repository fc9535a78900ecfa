package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxErrorBodyBytes = 1024

// Point IDs must be UUIDs for Qdrant; deriving them from doc ID and chunk
// index keeps re-indexing the same document idempotent.
var pointNamespace = uuid.MustParse("8d0cba43-9e1b-4f4a-a5a7-3e2f6c1d9b52")

// Qdrant is an Index backed by a Qdrant collection over its REST API.
type Qdrant struct {
	cfg      Config
	baseURL  string
	embedder Embedder
	http     *http.Client
}

// NewQdrant creates the index client and makes sure the collection exists.
func NewQdrant(ctx context.Context, cfg Config, embedder Embedder) (*Qdrant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	q := &Qdrant{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		embedder: embedder,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	if err := q.ensureCollection(ctx); err != nil {
		return nil, err
	}
	slog.Info("vector index ready",
		"url", q.baseURL,
		"collection", cfg.Collection,
		"dim", cfg.VectorDim,
	)
	return q, nil
}

// Add embeds the chunks and upserts them as points.
func (q *Qdrant) Add(ctx context.Context, chunks []Chunk) error {
	const op = "upsert"
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := q.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return &OpError{Op: op, Cause: fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))}
	}

	points := make([]map[string]any, 0, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != q.cfg.VectorDim {
			return &OpError{Op: op, Cause: fmt.Errorf("vector dimension mismatch: expected=%d got=%d", q.cfg.VectorDim, len(vectors[i]))}
		}
		points = append(points, map[string]any{
			"id":     q.pointID(c.DocID, c.Index),
			"vector": vectors[i],
			"payload": map[string]any{
				"doc_id": c.DocID,
				"chunk":  c.Index,
				"topic":  c.Topic,
				"text":   c.Text,
			},
		})
	}

	req := map[string]any{"points": points}
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), req, nil)
}

type searchResultItem struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Query embeds the query text and returns up to k passages in similarity
// order. A non-empty topic restricts results to chunks indexed under it.
func (q *Qdrant) Query(ctx context.Context, text string, k int, topic string) ([]Passage, error) {
	const op = "search"
	if k <= 0 {
		k = 5
	}
	vectors, err := q.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, &OpError{Op: op, Cause: fmt.Errorf("embedder returned %d vectors for query", len(vectors))}
	}

	req := map[string]any{
		"vector":       vectors[0],
		"limit":        k,
		"with_payload": true,
	}
	if topic != "" {
		req["filter"] = matchFilter("topic", topic)
	}

	var items []searchResultItem
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), req, &items); err != nil {
		return nil, err
	}

	passages := make([]Passage, 0, len(items))
	for _, item := range items {
		p := Passage{Score: item.Score}
		if s, ok := item.Payload["text"].(string); ok {
			p.Text = s
		}
		if s, ok := item.Payload["doc_id"].(string); ok {
			p.DocID = s
		}
		if s, ok := item.Payload["topic"].(string); ok {
			p.Topic = s
		}
		if n, ok := item.Payload["chunk"].(float64); ok {
			p.ChunkIndex = int(n)
		}
		if p.Text != "" {
			passages = append(passages, p)
		}
	}
	return passages, nil
}

// DeleteDocument removes every chunk indexed for the given document.
func (q *Qdrant) DeleteDocument(ctx context.Context, docID string) error {
	const op = "delete"
	req := map[string]any{"filter": matchFilter("doc_id", docID)}
	return q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/delete?wait=true"), req, nil)
}

// Reset drops the collection and recreates it empty.
func (q *Qdrant) Reset(ctx context.Context) error {
	const op = "reset"
	if err := q.doJSON(ctx, op, http.MethodDelete, q.collectionPath(""), nil, nil); err != nil {
		return err
	}
	return q.createCollection(ctx)
}

type scrollResult struct {
	Points []struct {
		Payload map[string]any `json:"payload"`
	} `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

// TopicCounts scrolls the whole collection and counts chunks per topic.
func (q *Qdrant) TopicCounts(ctx context.Context) (map[string]int, error) {
	const op = "scroll"
	counts := make(map[string]int)
	var offset json.RawMessage

	for {
		req := map[string]any{
			"limit":        256,
			"with_payload": []string{"topic"},
		}
		if len(offset) > 0 && string(offset) != "null" {
			req["offset"] = offset
		}

		var result scrollResult
		if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/scroll"), req, &result); err != nil {
			return nil, err
		}
		for _, pt := range result.Points {
			if topic, ok := pt.Payload["topic"].(string); ok && topic != "" {
				counts[topic]++
			}
		}
		if len(result.NextPageOffset) == 0 || string(result.NextPageOffset) == "null" {
			break
		}
		offset = result.NextPageOffset
	}
	return counts, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := q.doJSON(ctx, op, http.MethodGet, q.collectionPath(""), nil, &info)
	if err == nil {
		if size := info.Config.Params.Vectors.Size; size != 0 && size != q.cfg.VectorDim {
			return &OpError{Op: op, Cause: fmt.Errorf(
				"collection %q vector size mismatch: expected=%d actual=%d",
				q.cfg.Collection, q.cfg.VectorDim, size,
			)}
		}
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Status == http.StatusNotFound {
		return q.createCollection(ctx)
	}
	return err
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	const op = "create_collection"
	req := map[string]any{
		"vectors": map[string]any{
			"size":     q.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath(""), req, nil)
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

func (q *Qdrant) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return &OpError{Op: op, Cause: fmt.Errorf("encode request: %w", err)}
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return &OpError{Op: op, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.http.Do(req)
	if err != nil {
		return &OpError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &OpError{Op: op, Cause: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OpError{Op: op, Status: resp.StatusCode, Body: truncateBody(raw)}
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &OpError{Op: op, Cause: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &OpError{Op: op, Cause: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

func (q *Qdrant) pointID(docID string, index int) string {
	return uuid.NewSHA1(pointNamespace, fmt.Appendf(nil, "%s|%d", docID, index)).String()
}

func (q *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + q.cfg.Collection + suffix
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			},
		},
	}
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
