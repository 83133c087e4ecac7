package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/internos/internal/adapters/artifact"
	"github.com/okian/internos/internal/adapters/collector"
	"github.com/okian/internos/internal/adapters/gitops"
	"github.com/okian/internos/internal/adapters/http/api"
	"github.com/okian/internos/internal/adapters/http/swagger"
	"github.com/okian/internos/internal/adapters/repository"
	service "github.com/okian/internos/internal/app"
	"github.com/okian/internos/internal/catalog"
	"github.com/okian/internos/internal/config"
	"github.com/okian/internos/internal/domain/clarity"
	"github.com/okian/internos/pkg/logger"
	"github.com/okian/internos/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
	writeTimeoutSlack     = time.Minute
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithOptions(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "internos exited", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildService opens the store, seeds the ticket catalog and starts the
// grading service over the real tool and git adapters.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	profiles, err := cfg.Profiles()
	if err != nil {
		return nil, err
	}

	store, err := repository.NewSQLStore(ctx, cfg.DatabasePath, repository.WithLogger(log.Named("store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.TicketsFile != "" {
		tickets, err := catalog.Load(cfg.TicketsFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		n, err := catalog.Seed(ctx, store, tickets)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Info(ctx, "ticket catalog seeded", logger.String("file", cfg.TicketsFile), logger.Int("tickets", n))
	}

	writer, err := artifact.NewWriter(cfg.ArtifactsDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("artifacts dir: %w", err)
	}

	tools := collector.Tools{
		PythonBin:       cfg.PythonBin,
		TestTimeout:     cfg.TestTimeout(),
		CoverageTimeout: cfg.ToolTimeout(),
		DefaultTimeout:  cfg.ToolTimeout(),
	}
	suite := collector.NewSuite(
		collector.WithCollectors(collector.DefaultCollectors(collector.ExecRunner{}, tools)...),
		collector.WithConcurrency(cfg.CollectorConcurrency),
		collector.WithLogger(log.Named("collector")),
	)

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithCollectors(suite),
		service.WithHistory(gitops.New(cfg.ToolTimeout())),
		service.WithArtifacts(writer),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithProfiles(profiles),
		service.WithClarity(clarity.New(clarity.WithNoTextFloor(cfg.NoTextClarityFloor))),
		service.WithWorkspaceDir(cfg.WorkspaceDir),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("start service: %w", err)
	}
	return svc, nil
}

// newHandler registers the API and docs routes behind rate limiting and CORS.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	limited := api.NewRateLimiter(cfg.RateLimitPerMinute, 0).Wrap(mux)
	return api.CORS(limited, cfg.CORSOrigins)
}

// writeTimeout covers a submission graded inline: the test run plus the
// remaining tools run one after another in the worst case.
func writeTimeout(cfg *config.Config) time.Duration {
	return cfg.TestTimeout() + 3*cfg.ToolTimeout() + writeTimeoutSlack
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
