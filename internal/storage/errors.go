package storage

import "errors"

// Errors shared by every backend. Callers classify with errors.Is.
var (
	// ErrNotFound means the keyed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means the natural key is already stored. Records,
	// logs and summaries are never overwritten.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput means a required key field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)
