// Package clarity scores free text for communication quality.
package clarity

import (
	"math"
	"strings"
)

const (
	// DefaultNoTextFloor is the score given when no text was provided.
	DefaultNoTextFloor = 0.4

	base           = 0.3
	wordsPerPoint  = 150.0
	structureBonus = 0.2
)

// structureMarkers mark bullet lists, numbered lists and paragraph breaks.
var structureMarkers = []string{"- ", "* ", "1.", "\n\n"}

// Heuristic scores text into [0,1] by length and structure.
type Heuristic struct {
	noTextFloor float64
}

// Option configures a Heuristic.
type Option func(*Heuristic)

// WithNoTextFloor sets the score for absent or blank text. Values outside
// [0,1] are ignored.
func WithNoTextFloor(f float64) Option {
	return func(h *Heuristic) {
		if f >= 0 && f <= 1 {
			h.noTextFloor = f
		}
	}
}

// New returns a Heuristic.
func New(opts ...Option) *Heuristic {
	h := &Heuristic{noTextFloor: DefaultNoTextFloor}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NoTextFloor returns the configured floor.
func (h *Heuristic) NoTextFloor() float64 { return h.noTextFloor }

// Score returns min(1, 0.3 + words/150 + 0.2 when structured). Blank text
// scores the no-text floor.
func (h *Heuristic) Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return h.noTextFloor
	}
	words := len(strings.Fields(text))
	score := base + float64(words)/wordsPerPoint
	if Structured(text) {
		score += structureBonus
	}
	return math.Min(1, score)
}

// Structured reports whether text contains any list or paragraph marker.
func Structured(text string) bool {
	for _, m := range structureMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
