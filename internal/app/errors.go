package service

import (
	"errors"
)

// Sentinel error kinds returned by the service. The HTTP layer maps them to
// status codes with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrInFlight         = errors.New("submission already in flight")
	ErrBusy             = errors.New("too many submissions in flight")
	ErrWorkspace        = errors.New("workspace setup failed")
	ErrPersist          = errors.New("persist grade failed")
	ErrNotStarted       = errors.New("service not started")
)
