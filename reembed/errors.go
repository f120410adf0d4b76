package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrModelRequired is returned when no target embedding model is given.
	ErrModelRequired = errors.New("target embedding model required")
)
