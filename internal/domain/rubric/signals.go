// Package rubric turns raw engineering signals into bounded category scores.
//
// Every signal is mapped into [0,1] (inverse-cap for "lower is better" counts and
// durations, pass-through for ratios) and combined with fixed sub-weights per
// category and configurable top-level weights. Scoring is pure and total: a
// missing signal takes its conservative default, never zero.
package rubric

import "sort"

// Signal keys.
const (
	TestsPassed        = "tests_passed"
	TestsFailed        = "tests_failed"
	Coverage           = "coverage"
	LintErrors         = "lint_errors"
	AvgCyclomatic      = "avg_cyclomatic"
	FirstCommitLatency = "first_commit_latency"
	TimeToGreen        = "time_to_green"
	PRSize             = "pr_size"
	StandupClarity     = "standup_clarity"
	PRDescription      = "pr_description"
	Reproducible       = "reproducible"
)

// Missing-signal defaults. They are deliberately pessimistic for "lower is
// better" signals so an unproven candidate does not score well by omission.
var defaults = map[string]float64{
	LintErrors:         10,
	AvgCyclomatic:      10,
	PRSize:             400,
	TimeToGreen:        3600,
	FirstCommitLatency: 1800,
	TestsFailed:        1,
	TestsPassed:        0,
	StandupClarity:     0.5,
	PRDescription:      0.5,
	Reproducible:       0,
	Coverage:           0,
}

// Keys returns every known signal key in lexical order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnown reports whether key is a rubric signal.
func IsKnown(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Default returns the fallback for key and whether key is known.
func Default(key string) (float64, bool) {
	v, ok := defaults[key]
	return v, ok
}

// Signals is a sparse map from signal key to its raw value.
type Signals map[string]float64

// Get returns the value for key or its default when absent.
func (s Signals) Get(key string) float64 {
	if v, ok := s[key]; ok {
		return v
	}
	return defaults[key]
}

// Clone returns a shallow copy.
func (s Signals) Clone() Signals {
	out := make(Signals, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Known returns a copy restricted to rubric signal keys.
func (s Signals) Known() Signals {
	out := make(Signals, len(s))
	for k, v := range s {
		if IsKnown(k) {
			out[k] = v
		}
	}
	return out
}

// Unknown returns the sorted keys that are not rubric signals.
func (s Signals) Unknown() []string {
	var out []string
	for k := range s {
		if !IsKnown(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
