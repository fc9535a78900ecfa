package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/furkankasim16/knowledge-bot/internal/generate"
	"github.com/furkankasim16/knowledge-bot/internal/llm"
	"github.com/furkankasim16/knowledge-bot/internal/model"
	"github.com/furkankasim16/knowledge-bot/internal/store"
)

// generationParams reads and validates topic/level/type query parameters,
// filling anything absent with a random draw.
func (h *Handler) generationParams(r *http.Request) (string, model.Level, model.QuestionType, string) {
	q := r.URL.Query()

	topic := q.Get("topic")
	if topic == "" {
		topic = model.RandomTopic(h.topics)
	}

	level := model.Level(q.Get("level"))
	if level == "" {
		level = model.RandomLevel()
	} else if !model.ValidLevel(level) {
		return "", "", "", "unknown level " + strconv.Quote(string(level))
	}

	qtype := model.QuestionType(q.Get("type"))
	if qtype == "" {
		qtype = model.RandomType()
	} else if !model.ValidType(qtype) {
		return "", "", "", "unknown type " + strconv.Quote(string(qtype))
	}

	return topic, level, qtype, ""
}

func (h *Handler) handleGenerateQuestion(w http.ResponseWriter, r *http.Request) {
	topic, level, qtype, problem := h.generationParams(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, "invalid parameters", problem)
		return
	}
	h.generateAndRespond(w, r, topic, level, qtype)
}

func (h *Handler) handleGenerateRandom(w http.ResponseWriter, r *http.Request) {
	h.generateAndRespond(w, r, model.RandomTopic(h.topics), model.RandomLevel(), model.RandomType())
}

func (h *Handler) generateAndRespond(w http.ResponseWriter, r *http.Request, topic string, level model.Level, qtype model.QuestionType) {
	out, err := h.pipeline.GenerateQuestion(r.Context(), topic, level, qtype)
	if err != nil {
		status, msg := generationErrorStatus(err)
		writeError(w, status, msg, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out.Question)
}

// generationErrorStatus maps pipeline failures onto HTTP statuses. The
// model declining or emitting garbage is the upstream's fault, not the
// caller's and not ours.
func generationErrorStatus(err error) (int, string) {
	var f *generate.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError, "generation failed"
	}
	switch f.Stage {
	case generate.StageParse:
		var perr *llm.ParseError
		if errors.As(f.Err, &perr) && perr.Declined {
			return http.StatusBadGateway, "model declined to generate"
		}
		return http.StatusBadGateway, "model output unusable"
	case generate.StageValidate:
		return http.StatusBadGateway, "model produced an incomplete question"
	case generate.StageGenerate, generate.StageRetrieve:
		return http.StatusBadGateway, "upstream unavailable"
	default:
		return http.StatusInternalServerError, "generation failed"
	}
}

func (h *Handler) handleStoredRandom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level := model.Level(q.Get("level"))
	if level != "" && !model.ValidLevel(level) {
		writeError(w, http.StatusBadRequest, "invalid parameters", "unknown level "+strconv.Quote(string(level)))
		return
	}

	question, err := h.store.RandomQuestion(q.Get("topic"), level)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no questions", "no stored question matches the filters")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	questions, err := h.store.ListQuestions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing failed", err.Error())
		return
	}
	if questions == nil {
		questions = []*model.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions, "count": len(questions)})
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id", "question id must be an integer")
		return
	}
	if err := h.store.DeleteQuestion(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found", "no question with that id")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}
