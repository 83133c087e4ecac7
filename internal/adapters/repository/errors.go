package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrStatusConflict = errors.New("attempt status conflict")
	ErrInvalidRecord  = errors.New("invalid record")
)
