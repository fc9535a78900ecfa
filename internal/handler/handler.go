// Package handler exposes the knowledge-bot HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/furkankasim16/knowledge-bot/internal/generate"
	"github.com/furkankasim16/knowledge-bot/internal/model"
	"github.com/furkankasim16/knowledge-bot/internal/store"
	"github.com/furkankasim16/knowledge-bot/internal/vector"
)

// Indexer ingests and removes documents.
type Indexer interface {
	IndexDocument(ctx context.Context, filename string, raw []byte, topic string) (int, error)
	DeleteDocument(ctx context.Context, docID string) error
	Reset(ctx context.Context) error
}

// Searcher queries the vector index directly.
type Searcher interface {
	Query(ctx context.Context, text string, k int, topic string) ([]vector.Passage, error)
	TopicCounts(ctx context.Context) (map[string]int, error)
}

// QuestionPipeline generates one question end to end.
type QuestionPipeline interface {
	GenerateQuestion(ctx context.Context, topic string, level model.Level, qtype model.QuestionType) (*generate.Outcome, error)
}

// Chatter answers a free-form question against the knowledge base.
type Chatter interface {
	Answer(ctx context.Context, message, topic string) string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	indexer  Indexer
	search   Searcher
	pipeline QuestionPipeline
	chat     Chatter
	store    *store.Store
	topics   []string
}

// New creates a new Handler. An empty topics list falls back to the
// built-in defaults.
func New(ix Indexer, se Searcher, p QuestionPipeline, c Chatter, st *store.Store, topics []string) *Handler {
	if len(topics) == 0 {
		topics = model.DefaultTopics
	}
	return &Handler{indexer: ix, search: se, pipeline: p, chat: c, store: st, topics: topics}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Post("/index", h.handleIndexDocument)
	r.Get("/search", h.handleSearch)
	r.Get("/topics", h.handleTopics)
	r.Delete("/documents", h.handleResetIndex)
	r.Delete("/documents/{docID}", h.handleDeleteDocument)

	r.Post("/questions/generate", h.handleGenerateQuestion)
	r.Post("/questions/random", h.handleGenerateRandom)
	r.Get("/questions/random", h.handleStoredRandom)
	r.Get("/questions", h.handleListQuestions)
	r.Delete("/questions/{id}", h.handleDeleteQuestion)

	r.Post("/chat", h.handleChat)

	r.Post("/attempts", h.handleSaveAttempt)
	r.Get("/attempts", h.handleListAttempts)
	r.Get("/attempts/stats", h.handleUserStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, map[string]string{"error": msg, "detail": detail})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.QuestionCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "questions": count})
}
