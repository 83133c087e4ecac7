package rubric

import "errors"

var (
	ErrInvalidWeights = errors.New("invalid rubric weights")
	ErrInvalidSignal  = errors.New("invalid signal value")
)
