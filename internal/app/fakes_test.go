package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/internos/internal/adapters/artifact"
	"github.com/okian/internos/internal/adapters/collector"
	"github.com/okian/internos/internal/adapters/gitops"
	repository "github.com/okian/internos/internal/adapters/repository"
	service "github.com/okian/internos/internal/app"
	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/internal/domain/signal"
	"github.com/okian/internos/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeCollectors returns canned reports. When gate is set, Run blocks on it
// after signalling entered.
type fakeCollectors struct {
	reports []collector.Report
	entered chan struct{}
	gate    chan struct{}
	calls   atomic.Int32
}

func (f *fakeCollectors) Run(ctx context.Context, _ string) []collector.Report {
	f.calls.Add(1)
	if f.gate != nil {
		f.entered <- struct{}{}
		select {
		case <-f.gate:
		case <-ctx.Done():
		}
	}
	return f.reports
}

func healthyReports() []collector.Report {
	detail := map[string]any{"exit_code": 0}
	return []collector.Report{
		{Collector: collector.NameTests, Raw: "10 passed in 0.12s", Readings: []signal.Reading{
			signal.Measured(rubric.TestsPassed, 10, detail),
			signal.Measured(rubric.TestsFailed, 0, detail),
			signal.Measured(rubric.Reproducible, 1, detail),
		}},
		{Collector: collector.NameCoverage, Raw: "TOTAL 100 10 90%", Readings: []signal.Reading{
			signal.Measured(rubric.Coverage, 0.9, nil),
		}},
		{
			Collector: collector.NameLint, Reason: signal.ReasonToolTimeout, Err: collector.ErrTimeout,
			Readings: []signal.Reading{signal.Defaulted(rubric.LintErrors, signal.ReasonToolTimeout, nil)},
		},
		{Collector: collector.NameComplexity, Raw: "Average complexity: A (3.0)", Readings: []signal.Reading{
			signal.Measured(rubric.AvgCyclomatic, 3, nil),
		}},
	}
}

// fakeHistory clones by creating an empty directory.
type fakeHistory struct {
	cloneErr  error
	firstAt   time.Time
	firstErr  error
	diffSize  int
	diffErr   error
	clonedDir []string
	mu        sync.Mutex
}

func (f *fakeHistory) Clone(_ context.Context, url, baseDir string) (string, error) {
	if f.cloneErr != nil {
		return "", f.cloneErr
	}
	dst := filepath.Join(baseDir, gitops.RepoName(url))
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.clonedDir = append(f.clonedDir, dst)
	f.mu.Unlock()
	return dst, nil
}

func (f *fakeHistory) FirstCommitAfter(context.Context, string, time.Time) (time.Time, error) {
	return f.firstAt, f.firstErr
}

func (f *fakeHistory) DiffSize(context.Context, string) (int, string, error) {
	if f.diffErr != nil {
		return 0, "", f.diffErr
	}
	return f.diffSize, "origin/main", nil
}

// flakyStore fails FinalizeAttempt while fail is set.
type flakyStore struct {
	repository.Store
	fail atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) FinalizeAttempt(ctx context.Context, id int64, at time.Time, ms []model.Metric, as []model.Artifact) error {
	if f.fail.Load() {
		return errDiskFull
	}
	return f.Store.FinalizeAttempt(ctx, id, at, ms, as)
}

type fixture struct {
	svc        *service.Service
	store      *flakyStore
	collectors *fakeCollectors
	history    *fakeHistory
	clock      *clock
	artifacts  string
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := repository.NewSQLStore(ctx, filepath.Join(dir, "internos.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	store := &flakyStore{Store: db}
	tickets := []model.Ticket{
		{ID: 1, Kind: "bugfix", Title: "Fix pagination", RepoURL: "file:///srv/pagination.git"},
		{ID: 2, Kind: "incident", Title: "Cache incident", RepoURL: "file:///srv/cache.git"},
		{ID: 3, Kind: "feature", Title: "CSV export", RepoURL: "file:///srv/export.git",
			Weights: &rubric.Weights{Ship: 0.25, Quality: 0.25, Comm: 0.25, Reliability: 0.25}},
	}
	for _, tk := range tickets {
		if _, err := store.UpsertTicket(ctx, tk); err != nil {
			t.Fatalf("seed ticket: %v", err)
		}
	}

	arts, err := artifact.NewWriter(filepath.Join(dir, "artifacts"))
	if err != nil {
		t.Fatalf("artifact writer: %v", err)
	}

	f := &fixture{
		store:      store,
		collectors: &fakeCollectors{reports: healthyReports()},
		history:    &fakeHistory{firstAt: t0.Add(300 * time.Second), diffSize: 50},
		clock:      &clock{now: t0},
		artifacts:  arts.Dir(),
	}
	profiles, err := rubric.NewProfiles(rubric.DefaultWeights(), map[string]rubric.Weights{
		"incident": {Ship: 0.3, Quality: 0.25, Comm: 0.3, Reliability: 0.15},
	})
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}

	base := []service.Option{
		service.WithStore(store),
		service.WithCollectors(f.collectors),
		service.WithHistory(f.history),
		service.WithArtifacts(arts),
		service.WithProfiles(profiles),
		service.WithWorkspaceDir(filepath.Join(dir, "workspaces")),
		service.WithClock(f.clock.Now),
	}
	f.svc = service.New(append(base, opts...)...)
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(f.svc.Stop)
	return f
}
