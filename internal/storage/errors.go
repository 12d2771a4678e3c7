package storage

import "errors"

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when an optimistic write lost too many races.
	ErrConflict = errors.New("write conflict: retries exhausted")

	// ErrUnsupported is returned when a backend does not implement an
	// optional atomic operation. Callers fall back to read-modify-write.
	ErrUnsupported = errors.New("operation unsupported by store")
)
