package collector

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/internos/internal/domain/signal"
	"github.com/okian/internos/pkg/logger"
	"github.com/okian/internos/pkg/metrics"
)

// Suite runs a fixed set of collectors against one repository.
type Suite struct {
	collectors  []Collector
	concurrency int
	logger      logger.Logger
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithCollectors replaces the collector set.
func WithCollectors(cs ...Collector) SuiteOption {
	return func(s *Suite) { s.collectors = cs }
}

// WithConcurrency bounds how many collectors run at once. Tools that share
// the working tree (pytest and coverage both write caches) should run with 1.
func WithConcurrency(n int) SuiteOption {
	return func(s *Suite) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) SuiteOption {
	return func(s *Suite) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSuite creates a Suite running sequentially unless configured otherwise.
func NewSuite(opts ...SuiteOption) *Suite {
	s := &Suite{concurrency: 1}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("collector")
	}
	return s
}

// Collectors returns the configured collectors in run order.
func (s *Suite) Collectors() []Collector { return s.collectors }

// Run executes every collector and returns their reports in collector order.
func (s *Suite) Run(ctx context.Context, repoDir string) []Report {
	reports := make([]Report, len(s.collectors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range s.collectors {
		g.Go(func() error {
			reports[i] = c.Collect(gctx, repoDir)
			s.observe(gctx, reports[i])
			return nil
		})
	}
	_ = g.Wait() // faults are carried inside each report

	return reports
}

func (s *Suite) observe(ctx context.Context, r Report) {
	outcome := "ok"
	if r.Reason != signal.ReasonNone {
		outcome = string(r.Reason)
	}
	metrics.RecordCollectorRun(r.Collector, outcome, float64(r.Duration)/float64(time.Millisecond))

	if r.OK() {
		s.logger.Debug(ctx, "collector finished",
			logger.String("collector", r.Collector),
			logger.Duration("duration", r.Duration))
		return
	}
	for _, rd := range r.Readings {
		metrics.RecordSignalDefaulted(rd.Key, string(rd.Reason))
	}
	s.logger.Warn(ctx, "collector defaulted its signals",
		logger.String("collector", r.Collector),
		logger.String("reason", outcome),
		logger.Error(r.Err))
}

// Readings flattens the readings of all reports.
func Readings(reports []Report) []signal.Reading {
	var out []signal.Reading
	for _, r := range reports {
		out = append(out, r.Readings...)
	}
	return out
}
