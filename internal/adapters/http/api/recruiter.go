package api

import (
	"net/http"
	"strings"
)

// RecruiterHandler serves candidate snapshots.
type RecruiterHandler struct {
	deps Dependencies
}

// NewRecruiterHandler creates a new recruiter handler.
func NewRecruiterHandler(deps Dependencies) *RecruiterHandler {
	return &RecruiterHandler{deps: deps}
}

// HandleSnapshot handles GET /recruiter/{handle} requests. Every call builds
// and records a fresh snapshot.
func (h *RecruiterHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.recruiter_snapshot"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	handle := strings.TrimSpace(r.PathValue("handle"))
	if handle == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	view, err := h.deps.RecruiterSnapshot(r.Context(), handle)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
