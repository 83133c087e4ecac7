package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/internos/internal/config"
	"github.com/okian/internos/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tickets := filepath.Join(dir, "tickets.yaml")
	if err := os.WriteFile(tickets, []byte(`
tickets:
  - id: 1
    kind: bugfix
    title: Fix the parser
    repo_url: https://example.com/repo.git
    time_limit_minutes: 60
`), 0o600); err != nil {
		t.Fatalf("write tickets: %v", err)
	}

	cfg := config.New()
	cfg.DatabasePath = filepath.Join(dir, "internos.db")
	cfg.WorkspaceDir = filepath.Join(dir, "ws")
	cfg.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.TicketsFile = tickets
	return cfg
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			t.Setenv("INTERNOS_ADDR", ":8080")
			t.Setenv("INTERNOS_DEDUPE_SIZE", "16")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 16)
			})
		})

		convey.Convey("When the write timeout is derived", func() {
			cfg := config.New()

			convey.Convey("Then it covers a sequential grading run", func() {
				convey.So(writeTimeout(cfg), convey.ShouldEqual, 240*time.Second+900*time.Second+time.Minute)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a fully wired service", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)

		svc, err := buildService(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		defer svc.Stop()

		handler := newHandler(ctx, cfg, svc)

		convey.Convey("Then the seeded catalog is served", func() {
			req := httptest.NewRequest(http.MethodGet, "/tickets", http.NoBody)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "Fix the parser")
		})

		convey.Convey("And the docs and stats routes are registered", func() {
			for _, path := range []string{"/", "/openapi.yaml", "/api-docs", "/stats", "/healthz"} {
				req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("And CORS headers follow the configured origins", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Origin", "http://localhost:8501")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "*")
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			t.Setenv("INTERNOS_ADDR", "")

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the ticket catalog is missing", func() {
			cfg := testConfig(t)
			cfg.TicketsFile = filepath.Join(t.TempDir(), "missing.yaml")

			convey.Convey("Then the service is not built", func() {
				svc, err := buildService(context.Background(), cfg, logger.Get())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(svc, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
