package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	// ErrRetryable marks storage failures that may succeed on a fresh attempt.
	ErrRetryable = errors.New("retryable storage failure")
)
