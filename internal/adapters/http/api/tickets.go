package api

import (
	"net/http"

	"github.com/okian/internos/internal/domain/types"
)

// TicketsHandler handles the ticket catalog and the attempt lifecycle.
type TicketsHandler struct {
	deps Dependencies
}

// NewTicketsHandler creates a new tickets handler.
func NewTicketsHandler(deps Dependencies) *TicketsHandler {
	return &TicketsHandler{deps: deps}
}

// HandleList handles GET /tickets requests.
func (h *TicketsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_tickets"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	tickets, err := h.deps.Tickets(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if tickets == nil {
		tickets = []types.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

// HandleStart handles POST /tickets/start requests.
func (h *TicketsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_ticket"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.StartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if !req.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	resp, err := h.deps.StartTicket(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSubmit handles POST /tickets/submit requests. Grading runs inline, so
// the response carries the scores.
func (h *TicketsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_ticket"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.AttemptID <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	resp, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
