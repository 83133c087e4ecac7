package collector

import (
	"errors"

	"github.com/okian/internos/internal/domain/signal"
)

var (
	ErrTimeout     = errors.New("tool timed out")
	ErrToolFailure = errors.New("tool failed to run")
	ErrParse       = errors.New("tool output not recognized")
)

// reasonFor maps a runner or parser error to the reason recorded on defaulted readings.
func reasonFor(err error) signal.Reason {
	switch {
	case err == nil:
		return signal.ReasonNone
	case errors.Is(err, ErrTimeout):
		return signal.ReasonToolTimeout
	case errors.Is(err, ErrParse):
		return signal.ReasonParseFailure
	default:
		return signal.ReasonToolFailure
	}
}
