package handler

import (
	"encoding/json"
	"net/http"
)

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing message", "provide a message field")
		return
	}

	// Chat never fails outward; backend trouble comes back as a canned
	// answer in the response body.
	answer := h.chat.Answer(r.Context(), req.Message, req.Context)
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}
