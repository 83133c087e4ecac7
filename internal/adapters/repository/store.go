// Package repository persists users, tickets, attempts, their metric rows and
// artifacts, and recruiter snapshots.
package repository

import (
	"context"
	"time"

	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
)

// GradedAttempt pairs a graded attempt with its raw signal rows.
type GradedAttempt struct {
	Attempt model.Attempt
	Signals rubric.Signals
}

// Counts summarizes store contents for /stats.
type Counts struct {
	Users      int `json:"users"`
	Tickets    int `json:"tickets"`
	InProgress int `json:"in_progress"`
	Submitted  int `json:"submitted"`
	Graded     int `json:"graded"`
}

// Store is the attempt record store.
type Store interface {
	// EnsureUser returns the user with handle, creating it when missing.
	EnsureUser(ctx context.Context, handle string) (model.User, error)
	// UserByHandle returns ErrNotFound for unknown handles.
	UserByHandle(ctx context.Context, handle string) (model.User, error)

	UpsertTicket(ctx context.Context, t model.Ticket) (model.Ticket, error)
	Ticket(ctx context.Context, id int64) (model.Ticket, error)
	Tickets(ctx context.Context) ([]model.Ticket, error)

	CreateAttempt(ctx context.Context, a model.Attempt) (model.Attempt, error)
	Attempt(ctx context.Context, id int64) (model.Attempt, error)

	// TransitionAttempt moves an attempt from one status to another in a
	// single conditional update. It returns ErrStatusConflict when the
	// attempt is not in from.
	TransitionAttempt(ctx context.Context, id int64, from, to model.Status) error

	// FinalizeAttempt appends metric and artifact rows and marks a submitted
	// attempt graded, all in one transaction.
	FinalizeAttempt(ctx context.Context, id int64, finishedAt time.Time, metrics []model.Metric, artifacts []model.Artifact) error

	Metrics(ctx context.Context, attemptID int64) ([]model.Metric, error)
	Artifacts(ctx context.Context, attemptID int64) ([]model.Artifact, error)

	// GradedAttempts returns every graded attempt of a user with its raw
	// signals; score rows are excluded.
	GradedAttempts(ctx context.Context, userID int64) ([]GradedAttempt, error)

	SaveSnapshot(ctx context.Context, s model.Snapshot) (model.Snapshot, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}
