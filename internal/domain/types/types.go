// Package types contains the request and response shapes shared by the HTTP
// API, the service and the CLI client.
package types

import (
	"strings"
	"time"

	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/internal/domain/signal"
)

// Root is the liveness payload of GET /.
type Root struct {
	OK   bool   `json:"ok"`
	Name string `json:"name"`
}

// Ticket is a catalog entry.
type Ticket struct {
	ID               int64           `json:"id"`
	Kind             string          `json:"kind"`
	Title            string          `json:"title"`
	RepoURL          string          `json:"repo_url"`
	TimeLimitMinutes int             `json:"time_limit_minutes"`
	Description      string          `json:"description,omitempty"`
	Rubric           *rubric.Weights `json:"rubric,omitempty"`
}

// TicketFromModel converts a stored ticket.
func TicketFromModel(t model.Ticket) Ticket {
	return Ticket{
		ID:               t.ID,
		Kind:             t.Kind,
		Title:            t.Title,
		RepoURL:          t.RepoURL,
		TimeLimitMinutes: int(t.TimeLimit / time.Minute),
		Description:      t.Description,
		Rubric:           t.Weights,
	}
}

// StartRequest is the body of POST /tickets/start.
type StartRequest struct {
	Handle   string `json:"handle"`
	TicketID int64  `json:"ticket_id"`
}

// Valid reports whether the request names a handle and a ticket.
func (r StartRequest) Valid() bool {
	return strings.TrimSpace(r.Handle) != "" && r.TicketID > 0
}

// StartResponse identifies the new attempt and its working copy.
type StartResponse struct {
	AttemptID int64  `json:"attempt_id"`
	RepoPath  string `json:"repo_path"`
}

// SubmitRequest is the body of POST /tickets/submit.
type SubmitRequest struct {
	AttemptID      int64  `json:"attempt_id"`
	PRURL          string `json:"pr_url,omitempty"`
	PRBody         string `json:"pr_body,omitempty"`
	StandupText    string `json:"standup_text,omitempty"`
	PostmortemText string `json:"postmortem_text,omitempty"`
}

// SubmitResponse reports a completed grading.
type SubmitResponse struct {
	AttemptID  int64            `json:"attempt_id"`
	Status     model.Status     `json:"status"`
	Scores     rubric.Scores    `json:"scores"`      // rounded to three decimals, as stored
	FullScores rubric.Scores    `json:"scores_full"` // full precision
	Profile    string           `json:"profile"`
	Defaulted  []string         `json:"defaulted"`
	Readings   []signal.Reading `json:"readings"`
}

// MetricRow is one stored (key, value) row.
type MetricRow struct {
	Key   string         `json:"key"`
	Value float64        `json:"value"`
	Extra map[string]any `json:"extra,omitempty"`
}

// AttemptMetrics is the payload of GET /attempts/{id}/metrics.
type AttemptMetrics struct {
	AttemptID int64        `json:"attempt_id"`
	Status    model.Status `json:"status"`
	Metrics   []MetricRow  `json:"metrics"`
	Artifacts []Artifact   `json:"artifacts,omitempty"`
}

// Artifact is material produced or referenced by an attempt.
type Artifact struct {
	Kind string `json:"kind"`
	URL  string `json:"url,omitempty"`
	Note string `json:"note,omitempty"`
}

// RecruiterView is the payload of GET /recruiter/{handle}.
type RecruiterView struct {
	Handle   string         `json:"handle"`
	Snapshot model.Snapshot `json:"snapshot"`
}

// ScoreRequest is the body of POST /score.
type ScoreRequest struct {
	Signals rubric.Signals `json:"signals"`
	// Profile optionally names a ticket-kind profile.
	Profile string `json:"profile,omitempty"`
}

// ScoreResponse is a stateless scoring result.
type ScoreResponse struct {
	Profile    string        `json:"profile"`
	Scores     rubric.Scores `json:"scores"`
	FullScores rubric.Scores `json:"scores_full"`
	// Ignored lists keys that are not rubric signals.
	Ignored []string `json:"ignored,omitempty"`
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
