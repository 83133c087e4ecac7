package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/internal/domain/signal"
)

// Collector names, also used as artifact suffixes.
const (
	NameTests      = "pytest"
	NameCoverage   = "coverage"
	NameLint       = "lint"
	NameComplexity = "complexity"
)

// Report is what one collector produced for one repository.
type Report struct {
	Collector string
	Readings  []signal.Reading
	Raw       string
	Reason    signal.Reason // empty when every reading was measured
	Err       error
	Duration  time.Duration
}

// OK reports whether the collector measured its signals.
func (r Report) OK() bool { return r.Err == nil }

// Collector obtains one or more signals from a repository. Collect never
// fails: faults become defaulted readings.
type Collector interface {
	Name() string
	Keys() []string
	Collect(ctx context.Context, repoDir string) Report
}

// step is one process invocation of a tool.
type step struct {
	args    []string
	timeout time.Duration
}

// toolCollector runs its steps in order and parses the output of the last one.
type toolCollector struct {
	name   string
	keys   []string
	runner Runner
	steps  []step
	parse  func(Execution) ([]signal.Reading, error)
}

func (c *toolCollector) Name() string   { return c.name }
func (c *toolCollector) Keys() []string { return c.keys }

func (c *toolCollector) Collect(ctx context.Context, repoDir string) Report {
	start := time.Now()
	var raw strings.Builder
	var last Execution
	for _, s := range c.steps {
		ex, err := c.runner.Run(ctx, repoDir, s.timeout, s.args[0], s.args[1:]...)
		writeRaw(&raw, ex)
		if err != nil {
			return c.fail(err, raw.String(), start)
		}
		last = ex
	}
	readings, err := c.parse(last)
	if err != nil {
		return c.fail(err, raw.String(), start)
	}
	return Report{
		Collector: c.name,
		Readings:  readings,
		Raw:       raw.String(),
		Duration:  time.Since(start),
	}
}

func (c *toolCollector) fail(err error, raw string, start time.Time) Report {
	reason := reasonFor(err)
	detail := map[string]any{"collector": c.name, "error": err.Error()}
	readings := make([]signal.Reading, len(c.keys))
	for i, k := range c.keys {
		readings[i] = signal.Defaulted(k, reason, detail)
	}
	return Report{
		Collector: c.name,
		Readings:  readings,
		Raw:       raw,
		Reason:    reason,
		Err:       err,
		Duration:  time.Since(start),
	}
}

func writeRaw(b *strings.Builder, ex Execution) {
	if ex.Command == "" {
		return
	}
	b.WriteString("$ ")
	b.WriteString(ex.Command)
	b.WriteString("\n")
	b.WriteString(ex.Output())
	if !strings.HasSuffix(ex.Output(), "\n") {
		b.WriteString("\n")
	}
}

// Tools configures the default Python toolchain collectors.
type Tools struct {
	PythonBin       string
	TestTimeout     time.Duration
	CoverageTimeout time.Duration
	DefaultTimeout  time.Duration
}

// DefaultTools returns the stock timeouts.
func DefaultTools() Tools {
	return Tools{
		PythonBin:       "python",
		TestTimeout:     240 * time.Second,
		CoverageTimeout: 300 * time.Second,
		DefaultTimeout:  300 * time.Second,
	}
}

func (t Tools) py(timeout time.Duration, args ...string) step {
	return step{args: append([]string{t.PythonBin, "-m"}, args...), timeout: timeout}
}

// NewTestCollector runs pytest. A parsed run also proves the suite is
// reproducible from a clean checkout.
func NewTestCollector(r Runner, t Tools) Collector {
	return &toolCollector{
		name:   NameTests,
		keys:   []string{rubric.TestsPassed, rubric.TestsFailed, rubric.Reproducible},
		runner: r,
		steps:  []step{t.py(t.TestTimeout, "pytest", "-q")},
		parse: func(ex Execution) ([]signal.Reading, error) {
			// 2 interrupted, 3 internal error, 4 usage error: the suite never ran.
			if ex.ExitCode >= 2 && ex.ExitCode <= 4 {
				return nil, fmt.Errorf("%w: pytest exited %d", ErrToolFailure, ex.ExitCode)
			}
			tc, err := ParsePytest(ex.Output())
			if err != nil {
				return nil, err
			}
			detail := map[string]any{"exit_code": ex.ExitCode}
			return []signal.Reading{
				signal.Measured(rubric.TestsPassed, float64(tc.Passed), detail),
				signal.Measured(rubric.TestsFailed, float64(tc.Failed), detail),
				signal.Measured(rubric.Reproducible, 1, detail),
			}, nil
		},
	}
}

// NewCoverageCollector runs the suite under coverage and reads the total.
func NewCoverageCollector(r Runner, t Tools) Collector {
	return &toolCollector{
		name:   NameCoverage,
		keys:   []string{rubric.Coverage},
		runner: r,
		steps: []step{
			t.py(t.DefaultTimeout, "coverage", "erase"),
			t.py(t.CoverageTimeout, "coverage", "run", "-m", "pytest", "-q"),
			t.py(t.DefaultTimeout, "coverage", "report", "-m"),
		},
		parse: func(ex Execution) ([]signal.Reading, error) {
			cov, err := ParseCoverage(ex.Output())
			if err != nil {
				return nil, err
			}
			return []signal.Reading{signal.Measured(rubric.Coverage, cov, nil)}, nil
		},
	}
}

// NewLintCollector runs flake8 over the repository.
func NewLintCollector(r Runner, t Tools) Collector {
	return &toolCollector{
		name:   NameLint,
		keys:   []string{rubric.LintErrors},
		runner: r,
		steps:  []step{t.py(t.DefaultTimeout, "flake8", ".")},
		parse: func(ex Execution) ([]signal.Reading, error) {
			n, err := ParseFlake8(ex)
			if err != nil {
				return nil, err
			}
			return []signal.Reading{signal.Measured(rubric.LintErrors, float64(n), nil)}, nil
		},
	}
}

// NewComplexityCollector runs radon for the average cyclomatic complexity.
func NewComplexityCollector(r Runner, t Tools) Collector {
	return &toolCollector{
		name:   NameComplexity,
		keys:   []string{rubric.AvgCyclomatic},
		runner: r,
		steps:  []step{t.py(t.DefaultTimeout, "radon", "cc", "-s", "-a", ".")},
		parse: func(ex Execution) ([]signal.Reading, error) {
			avg, err := ParseRadon(ex.Output())
			if err != nil {
				return nil, err
			}
			return []signal.Reading{signal.Measured(rubric.AvgCyclomatic, avg, nil)}, nil
		},
	}
}

// DefaultCollectors returns the tests, coverage, lint and complexity collectors.
func DefaultCollectors(r Runner, t Tools) []Collector {
	return []Collector{
		NewTestCollector(r, t),
		NewCoverageCollector(r, t),
		NewLintCollector(r, t),
		NewComplexityCollector(r, t),
	}
}
