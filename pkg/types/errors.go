package types

import "errors"

// Error taxonomy shared by every component. Callers wrap these with
// fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrValidation marks input rejected before any work is done
	ErrValidation = errors.New("validation failed")
	// ErrRemoteService marks a failed call to the embedding service
	ErrRemoteService = errors.New("remote service failed")
	// ErrIndexUnavailable marks a storage engine that cannot be opened or reached
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrNotFound marks a missing ingestion source
	ErrNotFound = errors.New("not found")
)

// Chunk validation errors
var (
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrMissingSource   = errors.New("source is required")
	ErrInvalidPosition = errors.New("chunk index out of range")
)
