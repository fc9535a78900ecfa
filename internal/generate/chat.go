package generate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/furkankasim16/knowledge-bot/internal/llm"
	"github.com/furkankasim16/knowledge-bot/internal/vector"
)

const (
	chatPassages     = 2
	chatPassageRunes = 300
)

// Canned answers for a broken generation backend. Chat always answers;
// the failure detail goes to the log, not the user.
const (
	chatBackendDownAnswer = "The language model backend is not reachable right now. Please try again in a moment."
	chatFailedAnswer      = "An answer could not be generated. Please try rephrasing or asking a simpler question."
)

// PassageSearcher looks up knowledge-base passages for a free-text query.
type PassageSearcher interface {
	Query(ctx context.Context, text string, k int, topic string) ([]vector.Passage, error)
}

// Chat answers free-form user questions against the knowledge base. It
// degrades instead of failing: a broken search drops the passages and a
// dead generation backend yields a canned answer, never an error.
type Chat struct {
	search    PassageSearcher
	generator Generator
	model     string
	language  string
}

func NewChat(search PassageSearcher, g Generator, modelID, language string) *Chat {
	return &Chat{search: search, generator: g, model: modelID, language: language}
}

// Answer retrieves the passages closest to the message, prompts the model
// for a short answer, and returns it. An optional topic narrows the tone
// of the answer but not the search.
func (c *Chat) Answer(ctx context.Context, message, topic string) string {
	var texts []string
	passages, err := c.search.Query(ctx, message, chatPassages, "")
	if err != nil {
		slog.Warn("chat knowledge-base search failed", "error", err)
	}
	for _, p := range passages {
		texts = append(texts, clipRunes(p.Text, chatPassageRunes))
	}

	prompt := llm.BuildChatPrompt(message, topic, c.language, texts)
	answer, err := c.generator.Generate(ctx, c.model, prompt)
	if err != nil {
		slog.Warn("chat generation failed", "model", c.model, "error", err)
		var tErr *llm.TransportError
		if errors.As(err, &tErr) {
			return chatBackendDownAnswer
		}
		return chatFailedAnswer
	}
	return strings.TrimSpace(answer)
}

// clipRunes shortens s to at most n runes, marking the cut. Cutting on
// rune boundaries keeps multibyte text intact.
func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
