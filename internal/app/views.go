package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/internos/internal/domain/aggregate"
	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/internal/domain/types"
	"github.com/okian/internos/pkg/logger"
	"github.com/okian/internos/pkg/metrics"
)

// summaryKeys are the raw signals echoed in a recruiter snapshot summary.
var summaryKeys = []string{rubric.Coverage, rubric.AvgCyclomatic, rubric.PRSize}

// Tickets returns the catalog.
func (s *Service) Tickets(ctx context.Context) ([]types.Ticket, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ts, err := s.store.Tickets(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]types.Ticket, 0, len(ts))
	for _, t := range ts {
		out = append(out, types.TicketFromModel(t))
	}
	return out, nil
}

// AttemptMetrics returns every stored row of an attempt.
func (s *Service) AttemptMetrics(ctx context.Context, attemptID int64) (types.AttemptMetrics, error) {
	if err := s.ready(); err != nil {
		return types.AttemptMetrics{}, err
	}
	if attemptID <= 0 {
		return types.AttemptMetrics{}, fmt.Errorf("%w: attempt id must be positive", ErrInvalidInput)
	}
	a, err := s.store.Attempt(ctx, attemptID)
	if err != nil {
		return types.AttemptMetrics{}, storeErr(err)
	}
	ms, err := s.store.Metrics(ctx, attemptID)
	if err != nil {
		return types.AttemptMetrics{}, storeErr(err)
	}
	as, err := s.store.Artifacts(ctx, attemptID)
	if err != nil {
		return types.AttemptMetrics{}, storeErr(err)
	}

	out := types.AttemptMetrics{
		AttemptID: a.ID,
		Status:    a.Status,
		Metrics:   make([]types.MetricRow, 0, len(ms)),
	}
	for _, m := range ms {
		out.Metrics = append(out.Metrics, types.MetricRow{Key: m.Key, Value: m.Value, Extra: m.Extra})
	}
	for _, art := range as {
		out.Artifacts = append(out.Artifacts, types.Artifact{Kind: art.Kind, URL: art.URL, Note: art.Note})
	}
	return out, nil
}

// RecruiterSnapshot aggregates every graded attempt of handle, scores the
// mean signals with the default profile and records the snapshot.
func (s *Service) RecruiterSnapshot(ctx context.Context, handle string) (types.RecruiterView, error) {
	if err := s.ready(); err != nil {
		return types.RecruiterView{}, err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return types.RecruiterView{}, fmt.Errorf("%w: handle is required", ErrInvalidInput)
	}
	start := time.Now()

	user, err := s.store.UserByHandle(ctx, handle)
	if err != nil {
		return types.RecruiterView{}, storeErr(err)
	}
	graded, err := s.store.GradedAttempts(ctx, user.ID)
	if err != nil {
		return types.RecruiterView{}, storeErr(err)
	}

	perAttempt := make([]rubric.Signals, 0, len(graded))
	tickets := make(map[int64]struct{}, len(graded))
	for _, g := range graded {
		perAttempt = append(perAttempt, g.Signals.Known())
		tickets[g.Attempt.TicketID] = struct{}{}
	}
	mean, scores := aggregate.Score(s.profiles.Default(), perAttempt)

	summary := make(map[string]float64, len(summaryKeys))
	for _, k := range summaryKeys {
		summary[k] = rubric.Round3(mean.Get(k))
	}

	snap, err := s.store.SaveSnapshot(ctx, model.Snapshot{
		UserID:         user.ID,
		Handle:         user.Handle,
		Attempts:       len(graded),
		TicketsShipped: len(tickets),
		Signals:        mean,
		Summary:        summary,
		Scores:         scores.Rounded(),
		GeneratedAt:    s.now().UTC(),
	})
	if err != nil {
		return types.RecruiterView{}, storeErr(err)
	}

	metrics.RecordSnapshot(float64(time.Since(start)) / float64(time.Millisecond))
	s.logger.Debug(ctx, "recruiter snapshot built",
		logger.String("handle", handle),
		logger.Int("attempts", snap.Attempts),
		logger.Float64("overall", snap.Scores.Overall))
	return types.RecruiterView{Handle: user.Handle, Snapshot: snap}, nil
}

// ScoreSignals scores a signal map without touching the store. Unknown keys
// are reported and ignored.
func (s *Service) ScoreSignals(_ context.Context, req types.ScoreRequest) (types.ScoreResponse, error) {
	if err := rubric.ValidateSignals(req.Signals); err != nil {
		return types.ScoreResponse{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	scorer := s.profiles.Default()
	if req.Profile != "" {
		scorer = s.profiles.For(req.Profile)
	}

	full := scorer.Score(req.Signals)
	return types.ScoreResponse{
		Profile:    scorer.Name(),
		Scores:     full.Rounded(),
		FullScores: full,
		Ignored:    req.Signals.Unknown(),
	}, nil
}
