// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/internos/internal/app"
	"github.com/okian/internos/internal/domain/types"
)

// maxBodyBytes bounds request bodies; stand-up and postmortem texts are prose.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Tickets(ctx context.Context) ([]types.Ticket, error)
	StartTicket(ctx context.Context, req types.StartRequest) (types.StartResponse, error)
	Submit(ctx context.Context, req types.SubmitRequest) (types.SubmitResponse, error)
	AttemptMetrics(ctx context.Context, attemptID int64) (types.AttemptMetrics, error)
	RecruiterSnapshot(ctx context.Context, handle string) (types.RecruiterView, error)
	ScoreSignals(ctx context.Context, req types.ScoreRequest) (types.ScoreResponse, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	name             string
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	ticketsHandler   *TicketsHandler
	attemptsHandler  *AttemptsHandler
	recruiterHandler *RecruiterHandler
	scoreHandler     *ScoreHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		name:             "internos",
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		ticketsHandler:   NewTicketsHandler(deps),
		attemptsHandler:  NewAttemptsHandler(deps),
		recruiterHandler: NewRecruiterHandler(deps),
		scoreHandler:     NewScoreHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/{$}", MetricsMiddleware(s.handleRoot, "root"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/tickets", MetricsMiddleware(s.ticketsHandler.HandleList, "tickets"))
	mux.HandleFunc("/tickets/start", MetricsMiddleware(s.ticketsHandler.HandleStart, "tickets_start"))
	mux.HandleFunc("/tickets/submit", MetricsMiddleware(s.ticketsHandler.HandleSubmit, "tickets_submit"))
	mux.HandleFunc("/attempts/{id}/metrics", MetricsMiddleware(s.attemptsHandler.HandleMetrics, "attempt_metrics"))
	mux.HandleFunc("/recruiter/{handle}", MetricsMiddleware(s.recruiterHandler.HandleSnapshot, "recruiter"))
	mux.HandleFunc("/score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))
}

// handleRoot handles GET / requests.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, types.Root{OK: true, Name: s.name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// writeServiceError translates service sentinels into status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrAlreadySubmitted), errors.Is(err, service.ErrInFlight):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrWorkspace):
		writeError(w, http.StatusBadGateway, "workspace_error", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeJSON reads a single JSON object from the body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("decode body: trailing data")
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}
