package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/internal/domain/signal"
	"github.com/okian/internos/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type scripted struct {
	ex  Execution
	err error
}

// fakeRunner answers by the python module being invoked.
type fakeRunner struct {
	mu       sync.Mutex
	answers  map[string]scripted
	calls    []string
	running  atomic.Int32
	maxSeen  atomic.Int32
	sleep    time.Duration
	timeouts []time.Duration
}

func (f *fakeRunner) Run(_ context.Context, _ string, timeout time.Duration, name string, args ...string) (Execution, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.sleep > 0 {
		time.Sleep(f.sleep)
	}

	cmd := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.timeouts = append(f.timeouts, timeout)
	f.mu.Unlock()

	best := ""
	for key := range f.answers {
		if strings.Contains(cmd, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return Execution{Command: cmd}, nil
	}
	a := f.answers[best]
	a.ex.Command = cmd
	return a.ex, a.err
}

func healthyAnswers() map[string]scripted {
	return map[string]scripted{
		"-m pytest -q":    {ex: Execution{Stdout: "10 passed in 0.20s\n"}},
		"coverage report": {ex: Execution{Stdout: "TOTAL 100 10 90%\n"}},
		"flake8":          {ex: Execution{}},
		"radon":           {ex: Execution{Stdout: "Average complexity: A (3.0)\n"}},
		"coverage erase":  {ex: Execution{}},
	}
}

func TestToolCollectors(t *testing.T) {
	ctx := context.Background()
	tools := DefaultTools()

	Convey("Given healthy tools", t, func() {
		r := &fakeRunner{answers: healthyAnswers()}

		Convey("The test collector measures counts and reproducibility", func() {
			rep := NewTestCollector(r, tools).Collect(ctx, "/repo")
			So(rep.OK(), ShouldBeTrue)
			So(signal.Collect(rep.Readings), ShouldResemble, rubric.Signals{
				rubric.TestsPassed: 10, rubric.TestsFailed: 0, rubric.Reproducible: 1,
			})
			So(r.timeouts[0], ShouldEqual, 240*time.Second)
		})

		Convey("The coverage collector runs erase, run and report in order", func() {
			rep := NewCoverageCollector(r, tools).Collect(ctx, "/repo")
			So(rep.OK(), ShouldBeTrue)
			So(rep.Readings[0].Value, ShouldAlmostEqual, 0.9)
			So(len(r.calls), ShouldEqual, 3)
			So(r.calls[0], ShouldEndWith, "coverage erase")
			So(r.calls[1], ShouldEndWith, "coverage run -m pytest -q")
			So(r.calls[2], ShouldEndWith, "coverage report -m")
			So(r.timeouts[1], ShouldEqual, 300*time.Second)
			So(rep.Raw, ShouldContainSubstring, "TOTAL 100 10 90%")
		})
	})

	Convey("Given a lint tool that times out", t, func() {
		answers := healthyAnswers()
		answers["flake8"] = scripted{err: fmt.Errorf("%w: flake8", ErrTimeout)}
		r := &fakeRunner{answers: answers}

		rep := NewLintCollector(r, tools).Collect(ctx, "/repo")

		Convey("Then lint_errors is defaulted with the timeout reason", func() {
			So(rep.OK(), ShouldBeFalse)
			So(rep.Reason, ShouldEqual, signal.ReasonToolTimeout)
			So(rep.Readings, ShouldHaveLength, 1)
			So(rep.Readings[0].Key, ShouldEqual, rubric.LintErrors)
			So(rep.Readings[0].Value, ShouldEqual, 10)
			So(rep.Readings[0].Status, ShouldEqual, signal.StatusDefaulted)
		})
	})

	Convey("Given a complexity tool that cannot start", t, func() {
		answers := healthyAnswers()
		answers["radon"] = scripted{err: fmt.Errorf("%w: exec: not found", ErrToolFailure)}
		rep := NewComplexityCollector(&fakeRunner{answers: answers}, tools).Collect(ctx, "/repo")

		So(rep.Reason, ShouldEqual, signal.ReasonToolFailure)
		So(rep.Readings[0].Value, ShouldEqual, 10)
	})

	Convey("Given pytest output without a summary", t, func() {
		answers := healthyAnswers()
		answers["-m pytest -q"] = scripted{ex: Execution{ExitCode: 1, Stderr: "No module named pytest"}}
		rep := NewTestCollector(&fakeRunner{answers: answers}, tools).Collect(ctx, "/repo")

		Convey("Then every test signal is defaulted as a parse failure", func() {
			So(rep.Reason, ShouldEqual, signal.ReasonParseFailure)
			So(signal.Collect(rep.Readings), ShouldResemble, rubric.Signals{
				rubric.TestsPassed: 0, rubric.TestsFailed: 1, rubric.Reproducible: 0,
			})
		})
	})

	Convey("Given pytest stopping on a usage error", t, func() {
		answers := healthyAnswers()
		answers["-m pytest -q"] = scripted{ex: Execution{
			ExitCode: 4,
			Stdout:   "ERROR: file or directory not found: tests/\n\nno tests ran in 0.00s\n",
		}}
		rep := NewTestCollector(&fakeRunner{answers: answers}, tools).Collect(ctx, "/repo")

		Convey("Then the suite is not counted as reproducible", func() {
			So(rep.Reason, ShouldEqual, signal.ReasonToolFailure)
			So(signal.Collect(rep.Readings), ShouldResemble, rubric.Signals{
				rubric.TestsPassed: 0, rubric.TestsFailed: 1, rubric.Reproducible: 0,
			})
		})
	})

	Convey("Given pytest collecting nothing", t, func() {
		answers := healthyAnswers()
		answers["-m pytest -q"] = scripted{ex: Execution{ExitCode: 5, Stdout: "\nno tests ran in 0.01s\n"}}
		rep := NewTestCollector(&fakeRunner{answers: answers}, tools).Collect(ctx, "/repo")

		So(rep.Err, ShouldBeNil)
		So(signal.Collect(rep.Readings), ShouldResemble, rubric.Signals{
			rubric.TestsPassed: 0, rubric.TestsFailed: 0, rubric.Reproducible: 1,
		})
	})

	Convey("Given a coverage run that fails midway", t, func() {
		answers := healthyAnswers()
		answers["coverage run -m"] = scripted{err: fmt.Errorf("%w: coverage run", ErrTimeout)}
		r := &fakeRunner{answers: answers}
		rep := NewCoverageCollector(r, tools).Collect(ctx, "/repo")

		Convey("Then the report step is skipped", func() {
			So(len(r.calls), ShouldEqual, 2)
			So(rep.Reason, ShouldEqual, signal.ReasonToolTimeout)
			So(rep.Readings[0].Value, ShouldEqual, 0)
		})
	})
}

func TestSuite(t *testing.T) {
	ctx := context.Background()
	tools := DefaultTools()

	Convey("Given the default collectors", t, func() {
		Convey("When run sequentially", func() {
			r := &fakeRunner{answers: healthyAnswers(), sleep: time.Millisecond}
			s := NewSuite(WithCollectors(DefaultCollectors(r, tools)...))
			reports := s.Run(ctx, "/repo")

			Convey("Then reports keep collector order and never overlap", func() {
				So(reports, ShouldHaveLength, 4)
				So(reports[0].Collector, ShouldEqual, NameTests)
				So(reports[1].Collector, ShouldEqual, NameCoverage)
				So(reports[2].Collector, ShouldEqual, NameLint)
				So(reports[3].Collector, ShouldEqual, NameComplexity)
				So(r.maxSeen.Load(), ShouldEqual, 1)
			})

			Convey("Then the readings cover every tool-derived signal", func() {
				sig := signal.Collect(Readings(reports))
				So(sig, ShouldResemble, rubric.Signals{
					rubric.TestsPassed: 10, rubric.TestsFailed: 0, rubric.Reproducible: 1,
					rubric.Coverage: 0.9, rubric.LintErrors: 0, rubric.AvgCyclomatic: 3,
				})
			})
		})

		Convey("When run with a concurrency limit of two", func() {
			r := &fakeRunner{answers: healthyAnswers(), sleep: 20 * time.Millisecond}
			reports := NewSuite(WithConcurrency(2), WithCollectors(DefaultCollectors(r, tools)...)).Run(ctx, "/repo")

			So(reports, ShouldHaveLength, 4)
			So(r.maxSeen.Load(), ShouldBeLessThanOrEqualTo, 2)
		})

		Convey("When one collector faults the others still measure", func() {
			answers := healthyAnswers()
			answers["radon"] = scripted{err: fmt.Errorf("%w: radon", ErrTimeout)}
			reports := NewSuite(WithCollectors(DefaultCollectors(&fakeRunner{answers: answers}, tools)...)).Run(ctx, "/repo")

			So(reports[0].OK(), ShouldBeTrue)
			So(reports[3].OK(), ShouldBeFalse)
			So(signal.DefaultedKeys(Readings(reports)), ShouldResemble, []string{rubric.AvgCyclomatic})
		})
	})
}
