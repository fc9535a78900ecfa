package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/furkankasim16/knowledge-bot/internal/vector"
)

const truncationMarker = " [...]"

// Retriever assembles grounding context for a topic from the vector index.
type Retriever struct {
	index vector.Index
}

// NewRetriever creates a Retriever over the given index.
func NewRetriever(index vector.Index) *Retriever {
	return &Retriever{index: index}
}

// Retrieve queries the index with the topic string itself, preferring chunks
// indexed under that topic and broadening to the whole collection when the
// filtered query comes back empty. Passages are joined with blank lines up
// to maxChars; the passage that crosses the limit is cut to fit. When the
// index has nothing at all, a synthetic instruction naming the topic is
// returned so a cold index still produces a question from the model's
// background knowledge instead of failing.
func (r *Retriever) Retrieve(ctx context.Context, topic string, chunks, maxChars int) (string, error) {
	passages, err := r.index.Query(ctx, topic, chunks, topic)
	if err != nil {
		return "", fmt.Errorf("query index for %q: %w", topic, err)
	}
	if len(passages) == 0 {
		slog.Debug("no chunks under topic, retrying unfiltered", "topic", topic)
		passages, err = r.index.Query(ctx, topic, chunks, "")
		if err != nil {
			return "", fmt.Errorf("unfiltered query for %q: %w", topic, err)
		}
	}
	if len(passages) == 0 {
		slog.Info("no passages found, using fallback context", "topic", topic)
		return fallbackContext(topic), nil
	}

	var sb strings.Builder
	for i, p := range passages {
		sep := ""
		if i > 0 {
			sep = "\n\n"
		}
		if maxChars > 0 && sb.Len()+len(sep)+len(p.Text) > maxChars {
			cut := cutToRuneBoundary(p.Text, maxChars-sb.Len()-len(sep))
			if cut != "" {
				sb.WriteString(sep)
				sb.WriteString(cut)
				sb.WriteString(truncationMarker)
			}
			break
		}
		sb.WriteString(sep)
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// cutToRuneBoundary truncates s to at most n bytes, backing the cut off
// to the start of a rune so multibyte characters are never split.
func cutToRuneBoundary(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func fallbackContext(topic string) string {
	return fmt.Sprintf(
		"No reference passages are available for %q. Explain the fundamental concepts of this topic in an instructive way and base the question on that general knowledge.",
		topic,
	)
}
