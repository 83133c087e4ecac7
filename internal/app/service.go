// Package service provides the grading service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/internos/internal/adapters/collector"
	repository "github.com/okian/internos/internal/adapters/repository"
	"github.com/okian/internos/internal/domain/clarity"
	"github.com/okian/internos/internal/domain/dedupe"
	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/pkg/logger"
	"github.com/okian/internos/pkg/metrics"
)

// Collectors runs the tool collectors against a working copy.
type Collectors interface {
	Run(ctx context.Context, repoDir string) []collector.Report
}

// History reads repository history signals and prepares working copies.
type History interface {
	Clone(ctx context.Context, url, baseDir string) (string, error)
	FirstCommitAfter(ctx context.Context, repoDir string, since time.Time) (time.Time, error)
	DiffSize(ctx context.Context, repoDir string) (int, string, error)
}

// Artifacts stores raw tool output.
type Artifacts interface {
	Write(attemptID int64, name, content string) (string, error)
}

// Service implements the API dependencies for the grading system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	collectors Collectors
	history    History
	artifacts  Artifacts
	guard      dedupe.Guard
	profiles   *rubric.Profiles
	clarity    *clarity.Heuristic

	// Configuration
	workspaceDir string
	dedupeSize   int
	now          func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the attempt record store.
func WithStore(st repository.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithCollectors sets the tool collectors.
func WithCollectors(c Collectors) Option {
	return func(s *Service) { s.collectors = c }
}

// WithHistory sets the git history reader.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithArtifacts sets where raw tool output is written.
func WithArtifacts(a Artifacts) Option {
	return func(s *Service) { s.artifacts = a }
}

// WithGuard replaces the in-flight submission guard.
func WithGuard(g dedupe.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// WithDedupeSize bounds the default guard. Zero means unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithProfiles sets the rubric profiles.
func WithProfiles(p *rubric.Profiles) Option {
	return func(s *Service) {
		if p != nil {
			s.profiles = p
		}
	}
}

// WithClarity sets the clarity heuristic.
func WithClarity(h *clarity.Heuristic) Option {
	return func(s *Service) {
		if h != nil {
			s.clarity = h
		}
	}
}

// WithWorkspaceDir sets the root of per-attempt clones.
func WithWorkspaceDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.workspaceDir = dir
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workspaceDir: "data/workspaces",
		dedupeSize:   1024,
		now:          time.Now,
		clarity:      clarity.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.profiles == nil {
		s.profiles, _ = rubric.NewProfiles(rubric.DefaultWeights(), nil)
	}
	return s
}

// Start checks the wiring and prepares the guard.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	switch {
	case s.store == nil:
		return fmt.Errorf("%w: no store", ErrNotStarted)
	case s.collectors == nil:
		return fmt.Errorf("%w: no collectors", ErrNotStarted)
	case s.history == nil:
		return fmt.Errorf("%w: no history reader", ErrNotStarted)
	case s.artifacts == nil:
		return fmt.Errorf("%w: no artifact writer", ErrNotStarted)
	}

	if s.guard == nil {
		s.guard = dedupe.NewInMemoryGuard(dedupe.WithMaxSize(s.dedupeSize))
	}

	s.started = true
	s.logger.Info(ctx, "grading service started",
		logger.String("workspace_dir", s.workspaceDir),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.String("default_profile", s.profiles.Default().Name()),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping grading service...")
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "close store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "grading service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]any{
		"started":    started,
		"dedupeSize": s.dedupeSize,
	}
	if !started {
		return stats
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(goroutines)

	stats["inFlight"] = s.guard.Size()
	stats["goroutines"] = goroutines
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.logger.Warn(ctx, "stats: count store rows", logger.Error(err))
		return stats
	}
	stats["users"] = counts.Users
	stats["tickets"] = counts.Tickets
	stats["attempts"] = map[string]int{
		"in_progress": counts.InProgress,
		"submitted":   counts.Submitted,
		"graded":      counts.Graded,
	}
	return stats
}
