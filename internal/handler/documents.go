package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/furkankasim16/knowledge-bot/internal/vector"
)

// maxUploadBytes caps document uploads at 16 MiB.
const maxUploadBytes = 16 << 20

func (h *Handler) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field", err.Error())
		return
	}
	defer file.Close()

	topic := r.FormValue("topic")
	if topic == "" {
		topic = r.URL.Query().Get("topic")
	}
	if topic == "" {
		writeError(w, http.StatusBadRequest, "missing topic", "provide a topic form field or query parameter")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload", err.Error())
		return
	}

	chunks, err := h.indexer.IndexDocument(r.Context(), header.Filename, raw, topic)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "indexing failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "indexed",
		"doc_id": header.Filename,
		"topic":  topic,
		"chunks": chunks,
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query", "provide a q query parameter")
		return
	}
	k := 5
	if s := r.URL.Query().Get("k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid k", "k must be a positive integer")
			return
		}
		k = n
	}

	passages, err := h.search.Query(r.Context(), q, k, r.URL.Query().Get("topic"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed", err.Error())
		return
	}
	if passages == nil {
		passages = []vector.Passage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": passages})
}

func (h *Handler) handleTopics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.search.TopicCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "topic listing failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": counts})
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := h.indexer.DeleteDocument(r.Context(), docID); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "doc_id": docID})
}

func (h *Handler) handleResetIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.indexer.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "reset failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
