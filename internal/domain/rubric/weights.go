package rubric

import (
	"fmt"
	"math"
)

// Category names, also used as suffixes of persisted score rows.
const (
	CategoryShip        = "ship"
	CategoryQuality     = "quality"
	CategoryComm        = "comm"
	CategoryReliability = "reliability"
	CategoryOverall     = "overall"
)

// Fixed sub-weights inside each category.
const (
	shipFirstCommit = 0.25
	shipTimeToGreen = 0.35
	shipPRSize      = 0.20
	shipTests       = 0.20

	qualityCoverage   = 0.45
	qualityLint       = 0.25
	qualityCyclomatic = 0.30

	commStandup = 0.6
	commPRDesc  = 0.4

	reliabilityReproducible = 0.7
	reliabilityTests        = 0.3
)

// Test-outcome terms.
const (
	shipTestsGreen      = 1.0
	shipTestsNotGreen   = 0.3
	reliabilityClean    = 1.0
	reliabilityNotClean = 0.4
	weightSumTolerance  = 1e-9
)

// SubWeights returns the fixed sub-weights of every category.
func SubWeights() map[string][]float64 {
	return map[string][]float64{
		CategoryShip:        {shipFirstCommit, shipTimeToGreen, shipPRSize, shipTests},
		CategoryQuality:     {qualityCoverage, qualityLint, qualityCyclomatic},
		CategoryComm:        {commStandup, commPRDesc},
		CategoryReliability: {reliabilityReproducible, reliabilityTests},
	}
}

// Weights are the top-level category weights of the overall score.
type Weights struct {
	Ship        float64 `json:"ship" yaml:"ship" koanf:"ship"`
	Quality     float64 `json:"quality" yaml:"quality" koanf:"quality"`
	Comm        float64 `json:"comm" yaml:"comm" koanf:"comm"`
	Reliability float64 `json:"reliability" yaml:"reliability" koanf:"reliability"`
}

// DefaultWeights returns the standard 0.40/0.35/0.15/0.10 split.
func DefaultWeights() Weights {
	return Weights{Ship: 0.40, Quality: 0.35, Comm: 0.15, Reliability: 0.10}
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Ship + w.Quality + w.Comm + w.Reliability
}

// IsZero reports whether no weight was set.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// Validate checks the weights are finite, non-negative and sum to one.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		CategoryShip:        w.Ship,
		CategoryQuality:     w.Quality,
		CategoryComm:        w.Comm,
		CategoryReliability: w.Reliability,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s weight %v", ErrInvalidWeights, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// ratioKeys are passed through to a category unchanged, so they must stay in [0,1].
var ratioKeys = map[string]bool{
	Coverage:       true,
	StandupClarity: true,
	PRDescription:  true,
	Reproducible:   true,
}

// ValidateSignals rejects non-finite or negative values, ratios above one,
// and a reproducible flag other than 0 or 1.
func ValidateSignals(s Signals) error {
	for k, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidSignal, k)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidSignal, k)
		}
		if ratioKeys[k] && v > 1 {
			return fmt.Errorf("%w: %s is above 1", ErrInvalidSignal, k)
		}
		if k == Reproducible && v != 0 && v != 1 {
			return fmt.Errorf("%w: %s must be 0 or 1", ErrInvalidSignal, k)
		}
	}
	return nil
}
