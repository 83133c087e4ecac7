package rubric

import "fmt"

// Profiles resolves the Scorer for a ticket kind, falling back to a default.
type Profiles struct {
	def    *Scorer
	byKind map[string]*Scorer
}

// NewProfiles builds a Scorer per kind from weights, plus a default profile.
func NewProfiles(def Weights, byKind map[string]Weights) (*Profiles, error) {
	d, err := NewScorer(WithWeights(def))
	if err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}
	p := &Profiles{def: d, byKind: make(map[string]*Scorer, len(byKind))}
	for kind, w := range byKind {
		s, err := NewScorer(WithName(kind), WithWeights(w))
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", kind, err)
		}
		p.byKind[kind] = s
	}
	return p, nil
}

// Default returns the default profile.
func (p *Profiles) Default() *Scorer { return p.def }

// For returns the profile registered for kind or the default.
func (p *Profiles) For(kind string) *Scorer {
	if s, ok := p.byKind[kind]; ok {
		return s
	}
	return p.def
}
