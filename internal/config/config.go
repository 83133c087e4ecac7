// Package config defines service configuration and its layered loading.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/internos/internal/domain/clarity"
	"github.com/okian/internos/internal/domain/rubric"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`
	// LogFile, when set, receives a rotated copy of the log.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimitPerMinute bounds POST requests per client IP; 0 disables it.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	DatabasePath string `koanf:"database_path"`
	// WorkspaceDir holds one clone directory per attempt.
	WorkspaceDir string `koanf:"workspace_dir"`
	// ArtifactsDir receives raw tool output per attempt.
	ArtifactsDir string `koanf:"artifacts_dir"`
	// TicketsFile is the YAML ticket catalog seeded at startup. Optional.
	TicketsFile string `koanf:"tickets_file"`

	// PythonBin runs pytest, coverage, flake8 and radon as modules.
	PythonBin string `koanf:"python_bin"`
	// ToolTimeoutSeconds bounds coverage, lint and complexity runs.
	ToolTimeoutSeconds int `koanf:"tool_timeout_seconds"`
	// TestTimeoutSeconds bounds the pytest run.
	TestTimeoutSeconds int `koanf:"test_timeout_seconds"`
	// CollectorConcurrency is how many collectors run at once.
	CollectorConcurrency int `koanf:"collector_concurrency"`

	// DedupeSize caps concurrently graded submissions.
	DedupeSize int `koanf:"dedupe_size"`

	// NoTextClarityFloor scores a missing stand-up or PR description.
	NoTextClarityFloor float64 `koanf:"no_text_clarity_floor"`

	// Weights is the default rubric profile.
	Weights rubric.Weights `koanf:"weights"`
	// RubricProfiles maps a ticket kind to its own weights.
	RubricProfiles map[string]rubric.Weights `koanf:"rubric_profiles"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		CORSOrigins:          []string{"*"},
		RateLimitPerMinute:   60,
		DatabasePath:         "data/internos.db",
		WorkspaceDir:         "data/workspaces",
		ArtifactsDir:         "data/artifacts",
		PythonBin:            "python3",
		ToolTimeoutSeconds:   300,
		TestTimeoutSeconds:   240,
		CollectorConcurrency: 1,
		DedupeSize:           1024,
		NoTextClarityFloor:   clarity.DefaultNoTextFloor,
		Weights:              rubric.DefaultWeights(),
		RubricProfiles:       map[string]rubric.Weights{},
	}
}

// ToolTimeout returns the per-tool timeout.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// TestTimeout returns the test-run timeout.
func (c *Config) TestTimeout() time.Duration {
	return time.Duration(c.TestTimeoutSeconds) * time.Second
}

// Profiles builds the rubric profiles described by the config.
func (c *Config) Profiles() (*rubric.Profiles, error) {
	p, err := rubric.NewProfiles(c.Weights, c.RubricProfiles)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.WorkspaceDir == "":
		return fmt.Errorf("%w: workspace_dir must not be empty", ErrInvalidConfig)
	case c.ArtifactsDir == "":
		return fmt.Errorf("%w: artifacts_dir must not be empty", ErrInvalidConfig)
	case c.PythonBin == "":
		return fmt.Errorf("%w: python_bin must not be empty", ErrInvalidConfig)
	case c.ToolTimeoutSeconds <= 0:
		return fmt.Errorf("%w: tool_timeout_seconds must be positive", ErrInvalidConfig)
	case c.TestTimeoutSeconds <= 0:
		return fmt.Errorf("%w: test_timeout_seconds must be positive", ErrInvalidConfig)
	case c.CollectorConcurrency <= 0:
		return fmt.Errorf("%w: collector_concurrency must be positive", ErrInvalidConfig)
	case c.RateLimitPerMinute < 0:
		return fmt.Errorf("%w: rate_limit_per_minute must not be negative", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case math.IsNaN(c.NoTextClarityFloor) || c.NoTextClarityFloor < 0 || c.NoTextClarityFloor > 1:
		return fmt.Errorf("%w: no_text_clarity_floor must be within [0,1]", ErrInvalidConfig)
	}
	if _, err := c.Profiles(); err != nil {
		return err
	}
	return nil
}
