package api

import (
	"net/http"
)

// AttemptsHandler exposes stored attempt rows.
type AttemptsHandler struct {
	deps Dependencies
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(deps Dependencies) *AttemptsHandler {
	return &AttemptsHandler{deps: deps}
}

// HandleMetrics handles GET /attempts/{id}/metrics requests.
func (h *AttemptsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.attempt_metrics"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	resp, err := h.deps.AttemptMetrics(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
