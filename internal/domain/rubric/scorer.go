package rubric

import "math"

// Scores holds the four category scores and their weighted overall, each in [0,1].
type Scores struct {
	Ship        float64 `json:"ship"`
	Quality     float64 `json:"quality"`
	Comm        float64 `json:"comm"`
	Reliability float64 `json:"reliability"`
	Overall     float64 `json:"overall"`
}

// Round3 rounds half away from zero to three decimals.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// Rounded returns the scores rounded to three decimals.
func (s Scores) Rounded() Scores {
	return Scores{
		Ship:        Round3(s.Ship),
		Quality:     Round3(s.Quality),
		Comm:        Round3(s.Comm),
		Reliability: Round3(s.Reliability),
		Overall:     Round3(s.Overall),
	}
}

// Map returns the scores keyed by category name.
func (s Scores) Map() map[string]float64 {
	return map[string]float64{
		CategoryShip:        s.Ship,
		CategoryQuality:     s.Quality,
		CategoryComm:        s.Comm,
		CategoryReliability: s.Reliability,
		CategoryOverall:     s.Overall,
	}
}

// Scorer applies one rubric profile. It is immutable and safe for concurrent use.
type Scorer struct {
	name    string
	weights Weights
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the top-level category weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithName labels the profile, e.g. with a ticket kind.
func WithName(name string) Option {
	return func(s *Scorer) {
		if name != "" {
			s.name = name
		}
	}
}

// NewScorer builds a Scorer and validates its weights.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{name: "default", weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustScorer is NewScorer for statically known options.
func MustScorer(opts ...Option) *Scorer {
	s, err := NewScorer(opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the profile label.
func (s *Scorer) Name() string { return s.name }

// Weights returns the top-level weights in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Score computes full-precision category scores. Missing keys take their
// defaults and unknown keys are ignored.
func (s *Scorer) Score(sig Signals) Scores {
	out := Scores{
		Ship:        ship(sig),
		Quality:     quality(sig),
		Comm:        comm(sig),
		Reliability: reliability(sig),
	}
	out.Overall = s.weights.Ship*out.Ship +
		s.weights.Quality*out.Quality +
		s.weights.Comm*out.Comm +
		s.weights.Reliability*out.Reliability
	return out
}

func ship(sig Signals) float64 {
	// Green requires at least one passing test; zero tests is not green.
	tests := shipTestsNotGreen
	if sig.Get(TestsFailed) == 0 && sig.Get(TestsPassed) > 0 {
		tests = shipTestsGreen
	}
	return shipFirstCommit*InvCap(sig.Get(FirstCommitLatency), KneeFirstCommitLatency) +
		shipTimeToGreen*InvCap(sig.Get(TimeToGreen), KneeTimeToGreen) +
		shipPRSize*InvCap(sig.Get(PRSize), KneePRSize) +
		shipTests*tests
}

func quality(sig Signals) float64 {
	return qualityCoverage*sig.Get(Coverage) +
		qualityLint*InvCap(sig.Get(LintErrors), KneeLintErrors) +
		qualityCyclomatic*InvCap(sig.Get(AvgCyclomatic), KneeAvgCyclomatic)
}

func comm(sig Signals) float64 {
	return commStandup*sig.Get(StandupClarity) + commPRDesc*sig.Get(PRDescription)
}

func reliability(sig Signals) float64 {
	tests := reliabilityNotClean
	if sig.Get(TestsFailed) == 0 {
		tests = reliabilityClean
	}
	return reliabilityReproducible*sig.Get(Reproducible) + reliabilityTests*tests
}
