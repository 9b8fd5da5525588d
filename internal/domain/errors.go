package domain

import "errors"

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrNotConfigured = errors.New("not configured")

	// ErrAlreadyRunning is returned when a single-flight run is triggered
	// while a previous run is still in progress. The message is part of the
	// ops API contract.
	ErrAlreadyRunning = errors.New("Already running")
)
