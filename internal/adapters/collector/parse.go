package collector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	pytestCount   = regexp.MustCompile(`(\d+) (passed|failed|errors?)\b`)
	radonAverage  = regexp.MustCompile(`\((\d+(?:\.\d+)?)\)`)
	flake8Finding = regexp.MustCompile(`^[^\s:][^:]*:\d+:\d+: [A-Z]+\d+\b`)
)

// TestCounts is the outcome of a pytest session.
type TestCounts struct {
	Passed int
	Failed int // failures plus collection or fixture errors
}

// ParsePytest reads the final summary line of `pytest -q` output, e.g.
// "2 failed, 8 passed in 0.31s". A session that collected nothing reports
// "no tests ran" and parses as zero counts.
func ParsePytest(output string) (TestCounts, error) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(strings.Trim(strings.TrimSpace(lines[i]), "="))
		if strings.Contains(line, "no tests ran") {
			return TestCounts{}, nil
		}
		matches := pytestCount.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 || !strings.Contains(line, " in ") {
			continue
		}
		var tc TestCounts
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return TestCounts{}, fmt.Errorf("%w: pytest count %q", ErrParse, m[1])
			}
			if m[2] == "passed" {
				tc.Passed += n
			} else {
				tc.Failed += n
			}
		}
		return tc, nil
	}
	return TestCounts{}, fmt.Errorf("%w: no pytest summary line", ErrParse)
}

// ParseCoverage reads the TOTAL row of `coverage report` and returns a ratio in [0,1].
func ParseCoverage(output string) (float64, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "TOTAL") {
			continue
		}
		fields := strings.Fields(line)
		pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[len(fields)-1], "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: coverage total %q", ErrParse, line)
		}
		return clamp01(pct / 100), nil
	}
	return 0, fmt.Errorf("%w: no TOTAL row", ErrParse)
}

// ParseFlake8 counts findings in flake8 output. A non-zero exit without any
// finding means flake8 itself failed.
func ParseFlake8(ex Execution) (int, error) {
	count := 0
	for _, line := range strings.Split(ex.Stdout, "\n") {
		if flake8Finding.MatchString(strings.TrimSpace(line)) {
			count++
		}
	}
	if count == 0 && ex.ExitCode != 0 {
		return 0, fmt.Errorf("%w: flake8 exited %d without findings", ErrParse, ex.ExitCode)
	}
	return count, nil
}

// ParseRadon reads "Average complexity: A (1.75)" from `radon cc -s -a`.
func ParseRadon(output string) (float64, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Average complexity") {
			continue
		}
		m := radonAverage.FindStringSubmatch(line)
		if m == nil {
			break
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			break
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w: no average complexity", ErrParse)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
