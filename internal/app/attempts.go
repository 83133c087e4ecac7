package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/internos/internal/adapters/collector"
	"github.com/okian/internos/internal/adapters/gitops"
	repository "github.com/okian/internos/internal/adapters/repository"
	"github.com/okian/internos/internal/domain/dedupe"
	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/internal/domain/signal"
	"github.com/okian/internos/internal/domain/types"
	"github.com/okian/internos/pkg/logger"
	"github.com/okian/internos/pkg/metrics"
)

// Submit rejection reasons, used as metric labels.
const (
	rejectInvalid  = "invalid"
	rejectNotFound = "not_found"
	rejectConflict = "conflict"
	rejectInFlight = "in_flight"
	rejectBusy     = "busy"
)

// StartTicket opens an attempt of ticketID for handle, creating the user on
// first sight, and clones the ticket repository into a fresh directory.
func (s *Service) StartTicket(ctx context.Context, req types.StartRequest) (types.StartResponse, error) {
	if err := s.ready(); err != nil {
		return types.StartResponse{}, err
	}
	if !req.Valid() {
		return types.StartResponse{}, fmt.Errorf("%w: handle and ticket_id are required", ErrInvalidInput)
	}

	ticket, err := s.store.Ticket(ctx, req.TicketID)
	if err != nil {
		return types.StartResponse{}, storeErr(err)
	}
	user, err := s.store.EnsureUser(ctx, req.Handle)
	if err != nil {
		return types.StartResponse{}, storeErr(err)
	}

	dir := filepath.Join(s.workspaceDir, uuid.NewString())
	repoPath, err := s.history.Clone(ctx, ticket.RepoURL, dir)
	if err != nil {
		s.logger.Error(ctx, "clone ticket repository",
			logger.Int64("ticket_id", ticket.ID),
			logger.String("repo_url", ticket.RepoURL),
			logger.Error(err))
		return types.StartResponse{}, fmt.Errorf("%w: %w", ErrWorkspace, err)
	}

	attempt, err := s.store.CreateAttempt(ctx, model.Attempt{
		UserID:    user.ID,
		TicketID:  ticket.ID,
		StartedAt: s.now().UTC(),
		Status:    model.StatusInProgress,
		RepoPath:  repoPath,
	})
	if err != nil {
		return types.StartResponse{}, storeErr(err)
	}

	metrics.RecordAttemptStarted()
	s.logger.Info(ctx, "attempt started",
		logger.Int64("attempt_id", attempt.ID),
		logger.String("handle", user.Handle),
		logger.Int64("ticket_id", ticket.ID),
		logger.String("repo_path", repoPath))

	return types.StartResponse{AttemptID: attempt.ID, RepoPath: repoPath}, nil
}

// Submit grades an in-progress attempt exactly once. Faults of individual
// tools never fail the submission; they surface as defaulted signals.
func (s *Service) Submit(ctx context.Context, req types.SubmitRequest) (types.SubmitResponse, error) {
	if err := s.ready(); err != nil {
		return types.SubmitResponse{}, err
	}
	if req.AttemptID <= 0 {
		metrics.RecordSubmitRejected(rejectInvalid)
		return types.SubmitResponse{}, fmt.Errorf("%w: attempt_id is required", ErrInvalidInput)
	}

	if err := s.guard.Claim(ctx, req.AttemptID); err != nil {
		if errors.Is(err, dedupe.ErrCapacity) {
			metrics.RecordSubmitRejected(rejectBusy)
			return types.SubmitResponse{}, fmt.Errorf("%w: %w", ErrBusy, err)
		}
		metrics.RecordSubmitRejected(rejectInFlight)
		return types.SubmitResponse{}, fmt.Errorf("%w: attempt %d", ErrInFlight, req.AttemptID)
	}
	defer s.guard.Release(ctx, req.AttemptID)

	attempt, err := s.store.Attempt(ctx, req.AttemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordSubmitRejected(rejectNotFound)
		}
		return types.SubmitResponse{}, storeErr(err)
	}
	if attempt.Status != model.StatusInProgress {
		metrics.RecordSubmitRejected(rejectConflict)
		return types.SubmitResponse{}, fmt.Errorf("%w: attempt %d is %s", ErrAlreadySubmitted, attempt.ID, attempt.Status)
	}
	ticket, err := s.store.Ticket(ctx, attempt.TicketID)
	if err != nil {
		return types.SubmitResponse{}, storeErr(err)
	}

	if err := s.store.TransitionAttempt(ctx, attempt.ID, model.StatusInProgress, model.StatusSubmitted); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.RecordSubmitRejected(rejectConflict)
		}
		return types.SubmitResponse{}, storeErr(err)
	}
	submittedAt := s.now().UTC()

	metrics.UpdateInFlightGradings(1)
	defer metrics.UpdateInFlightGradings(-1)
	start := time.Now()

	resp, err := s.grade(ctx, attempt, ticket, req, submittedAt)
	latency := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		metrics.RecordGrading("failed", latency)
		// Give the candidate their attempt back.
		if rbErr := s.store.TransitionAttempt(context.WithoutCancel(ctx), attempt.ID,
			model.StatusSubmitted, model.StatusInProgress); rbErr != nil {
			s.logger.Error(ctx, "restore attempt after failed grade",
				logger.Int64("attempt_id", attempt.ID), logger.Error(rbErr))
		}
		return types.SubmitResponse{}, err
	}

	metrics.RecordGrading("graded", latency)
	metrics.RecordOverallScore(resp.FullScores.Overall)
	s.logger.Info(ctx, "attempt graded",
		logger.Int64("attempt_id", attempt.ID),
		logger.String("profile", resp.Profile),
		logger.Float64("overall", resp.Scores.Overall),
		logger.Any("defaulted", resp.Defaulted),
		logger.Duration("took", time.Since(start)))
	return resp, nil
}

// grade collects every signal, scores it and persists rows and artifacts.
func (s *Service) grade(ctx context.Context, attempt model.Attempt, ticket model.Ticket,
	req types.SubmitRequest, submittedAt time.Time,
) (types.SubmitResponse, error) {
	reports := s.collectors.Run(ctx, attempt.RepoPath)

	readings := collector.Readings(reports)
	readings = append(readings, s.historyReadings(ctx, attempt, submittedAt)...)
	readings = append(readings, s.textReadings(req)...)

	artifacts := s.writeReports(ctx, attempt.ID, reports)
	if u := strings.TrimSpace(req.PRURL); u != "" {
		artifacts = append(artifacts, model.Artifact{Kind: model.ArtifactPR, URL: u})
	}
	if pm := strings.TrimSpace(req.PostmortemText); pm != "" {
		artifacts = append(artifacts, model.Artifact{Kind: model.ArtifactPostmortem, Note: pm})
	}

	scorer := s.scorerFor(ctx, ticket)
	full := scorer.Score(signal.Collect(readings))
	rounded := full.Rounded()

	rows := make([]model.Metric, 0, len(readings)+5)
	for _, r := range readings {
		rows = append(rows, model.Metric{Key: r.Key, Value: r.Value, Extra: r.Extra()})
	}
	byCategory := rounded.Map()
	for _, cat := range scoreCategories {
		rows = append(rows, model.Metric{
			Key:   model.ScoreKey(cat),
			Value: byCategory[cat],
			Extra: map[string]any{"profile": scorer.Name()},
		})
	}

	if err := s.store.FinalizeAttempt(ctx, attempt.ID, s.now().UTC(), rows, artifacts); err != nil {
		s.logger.Error(ctx, "persist grade",
			logger.Int64("attempt_id", attempt.ID), logger.Error(err))
		return types.SubmitResponse{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	defaulted := signal.DefaultedKeys(readings)
	if defaulted == nil {
		defaulted = []string{}
	}
	return types.SubmitResponse{
		AttemptID:  attempt.ID,
		Status:     model.StatusGraded,
		Scores:     rounded,
		FullScores: full,
		Profile:    scorer.Name(),
		Defaulted:  defaulted,
		Readings:   readings,
	}, nil
}

var scoreCategories = []string{
	rubric.CategoryShip,
	rubric.CategoryQuality,
	rubric.CategoryComm,
	rubric.CategoryReliability,
	rubric.CategoryOverall,
}

// historyReadings derives the git and timing signals.
func (s *Service) historyReadings(ctx context.Context, attempt model.Attempt, submittedAt time.Time) []signal.Reading {
	out := make([]signal.Reading, 0, 3)

	first, err := s.history.FirstCommitAfter(ctx, attempt.RepoPath, attempt.StartedAt)
	switch {
	case err == nil:
		out = append(out, signal.Measured(rubric.FirstCommitLatency, seconds(first.Sub(attempt.StartedAt)),
			map[string]any{"first_commit_at": first.UTC().Format(time.RFC3339)}))
	case errors.Is(err, gitops.ErrNoCommits):
		out = append(out, signal.Defaulted(rubric.FirstCommitLatency, signal.ReasonNoData, nil))
	default:
		out = append(out, signal.Defaulted(rubric.FirstCommitLatency, historyReason(ctx, err),
			map[string]any{"error": err.Error()}))
	}

	size, base, err := s.history.DiffSize(ctx, attempt.RepoPath)
	switch {
	case err == nil:
		out = append(out, signal.Measured(rubric.PRSize, float64(size), map[string]any{"base_ref": base}))
	case errors.Is(err, gitops.ErrNoBaseRef):
		out = append(out, signal.Defaulted(rubric.PRSize, signal.ReasonNoData, nil))
	default:
		out = append(out, signal.Defaulted(rubric.PRSize, historyReason(ctx, err),
			map[string]any{"error": err.Error()}))
	}

	out = append(out, signal.Measured(rubric.TimeToGreen, seconds(submittedAt.Sub(attempt.StartedAt)),
		map[string]any{"submitted_at": submittedAt.Format(time.RFC3339)}))

	for _, r := range out {
		if r.IsDefaulted() {
			metrics.RecordSignalDefaulted(r.Key, string(r.Reason))
		}
	}
	return out
}

func historyReason(ctx context.Context, err error) signal.Reason {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return signal.ReasonToolTimeout
	}
	return signal.ReasonToolFailure
}

// seconds returns d in seconds, clamped at zero.
func seconds(d time.Duration) float64 {
	return math.Max(0, d.Seconds())
}

// textReadings scores the free-text submission fields.
func (s *Service) textReadings(req types.SubmitRequest) []signal.Reading {
	prSource, prText := "pr_body", req.PRBody
	if strings.TrimSpace(prText) == "" {
		prSource, prText = "pr_url", req.PRURL
	}
	return []signal.Reading{
		s.clarityReading(rubric.StandupClarity, "standup_text", req.StandupText),
		s.clarityReading(rubric.PRDescription, prSource, prText),
	}
}

func (s *Service) clarityReading(key, source, text string) signal.Reading {
	detail := map[string]any{"source": source}
	if strings.TrimSpace(text) == "" {
		detail["no_text"] = true
	} else {
		detail["words"] = len(strings.Fields(text))
	}
	return signal.Measured(key, s.clarity.Score(text), detail)
}

// writeReports stores each collector's raw output. A failed write loses the
// artifact but not the grade.
func (s *Service) writeReports(ctx context.Context, attemptID int64, reports []collector.Report) []model.Artifact {
	var out []model.Artifact
	for _, r := range reports {
		if r.Raw == "" {
			continue
		}
		path, err := s.artifacts.Write(attemptID, r.Collector, r.Raw)
		if err != nil {
			s.logger.Warn(ctx, "write tool report",
				logger.Int64("attempt_id", attemptID),
				logger.String("collector", r.Collector),
				logger.Error(err))
			continue
		}
		out = append(out, model.Artifact{Kind: model.ArtifactReport, URL: path, Note: r.Collector})
	}
	return out
}

// scorerFor resolves ticket weights, then the kind profile, then the default.
func (s *Service) scorerFor(ctx context.Context, t model.Ticket) *rubric.Scorer {
	if t.Weights != nil {
		sc, err := rubric.NewScorer(rubric.WithName(fmt.Sprintf("ticket-%d", t.ID)), rubric.WithWeights(*t.Weights))
		if err == nil {
			return sc
		}
		s.logger.Warn(ctx, "ignoring invalid ticket rubric",
			logger.Int64("ticket_id", t.ID), logger.Error(err))
	}
	return s.profiles.For(t.Kind)
}

// storeErr maps repository sentinels onto service sentinels.
func storeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrStatusConflict):
		return fmt.Errorf("%w: %w", ErrAlreadySubmitted, err)
	case errors.Is(err, repository.ErrInvalidRecord):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}
