// Package aggregate combines the signals of several graded attempts into one
// candidate-level signal map.
package aggregate

import (
	"sort"

	"github.com/okian/internos/internal/domain/rubric"
)

// Signals returns the per-key arithmetic mean over the attempts that reported
// each key. A key missing from an attempt is not counted as zero. Zero
// attempts yield an empty map. Values are summed in sorted order so the
// result does not depend on attempt order.
func Signals(attempts []rubric.Signals) rubric.Signals {
	values := make(map[string][]float64)
	for _, a := range attempts {
		for k, v := range a {
			values[k] = append(values[k], v)
		}
	}
	out := make(rubric.Signals, len(values))
	for k, vs := range values {
		sort.Float64s(vs)
		sum := 0.0
		for _, v := range vs {
			sum += v
		}
		out[k] = sum / float64(len(vs))
	}
	return out
}

// Score aggregates attempts and scores the result with scorer. Zero attempts
// score as all defaults.
func Score(scorer *rubric.Scorer, attempts []rubric.Signals) (rubric.Signals, rubric.Scores) {
	mean := Signals(attempts)
	return mean, scorer.Score(mean)
}
