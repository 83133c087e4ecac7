// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/okian/internos/internal/domain/rubric"
)

// Status is the lifecycle state of an attempt.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusGraded     Status = "graded"
)

// CanTransitionTo reports whether next directly follows s. Graded is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusInProgress:
		return next == StatusSubmitted
	case StatusSubmitted:
		// Back to in_progress only when a grade could not be persisted.
		return next == StatusGraded || next == StatusInProgress
	default:
		return false
	}
}

// User is a candidate identified by a unique handle.
type User struct {
	ID        int64
	Handle    string
	CreatedAt time.Time
}

// Ticket is a task a candidate can attempt.
type Ticket struct {
	ID          int64
	Kind        string
	Title       string
	RepoURL     string
	TimeLimit   time.Duration // zero means unlimited
	Description string
	// Weights overrides the rubric profile for this ticket when set.
	Weights *rubric.Weights
}

// Attempt is one candidate working one ticket.
type Attempt struct {
	ID         int64
	UserID     int64
	TicketID   int64
	StartedAt  time.Time
	FinishedAt time.Time // zero until graded
	Status     Status
	RepoPath   string
}

// Graded reports whether the attempt reached its terminal state.
func (a Attempt) Graded() bool { return a.Status == StatusGraded }

// Metric is an append-only (key, value) row recorded for an attempt.
type Metric struct {
	ID        int64
	AttemptID int64
	Key       string
	Value     float64
	Extra     map[string]any
	CreatedAt time.Time
}

// ScoreKeyPrefix marks derived score rows as opposed to raw signals.
const ScoreKeyPrefix = "score_"

// ScoreKey returns the metric key for a score category.
func ScoreKey(category string) string { return ScoreKeyPrefix + category }

// IsScoreKey reports whether key is a derived score row.
func IsScoreKey(key string) bool { return strings.HasPrefix(key, ScoreKeyPrefix) }

// Artifact kinds.
const (
	ArtifactReport     = "report"
	ArtifactPR         = "pr"
	ArtifactPostmortem = "postmortem"
)

// Artifact points at material produced or referenced during an attempt.
type Artifact struct {
	ID        int64
	AttemptID int64
	Kind      string
	URL       string
	Note      string
}

// Snapshot is a recruiter-facing summary of a candidate at a point in time.
type Snapshot struct {
	ID             int64              `json:"id"`
	UserID         int64              `json:"user_id"`
	Handle         string             `json:"handle"`
	Attempts       int                `json:"attempts"`
	TicketsShipped int                `json:"tickets_shipped"`
	Signals        rubric.Signals     `json:"signals"`
	Summary        map[string]float64 `json:"summary"`
	Scores         rubric.Scores      `json:"scores"`
	GeneratedAt    time.Time          `json:"generated_at"`
}
