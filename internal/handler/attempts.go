package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/furkankasim16/knowledge-bot/internal/model"
	"github.com/furkankasim16/knowledge-bot/internal/store"
)

// userID reads the caller identity set by the external auth layer. The
// value is opaque here; authentication happens upstream.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) handleSaveAttempt(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing identity", "X-User-ID header is required")
		return
	}

	var attempt model.QuizAttempt
	if err := json.NewDecoder(r.Body).Decode(&attempt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	attempt.UserID = uid

	if err := h.store.SaveAttempt(&attempt); err != nil {
		// Only a malformed submission is the caller's fault.
		if errors.Is(err, model.ErrNoQuestions) || errors.Is(err, store.ErrInvalidAttempt) {
			writeError(w, http.StatusBadRequest, "invalid attempt", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "save failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing identity", "X-User-ID header is required")
		return
	}

	attempts, err := h.store.Attempts(uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing failed", err.Error())
		return
	}
	if attempts == nil {
		attempts = []*model.QuizAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts, "count": len(attempts)})
}

func (h *Handler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing identity", "X-User-ID header is required")
		return
	}

	stats, err := h.store.UserStats(uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
