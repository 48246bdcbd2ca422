package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrImageNotFound signals a missing image record.
	ErrImageNotFound = fmt.Errorf("image %w", ErrNotFound)
	// ErrValidation signals bad user input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate signals an image whose fingerprint is already known.
	ErrDuplicate = errors.New("duplicate image")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrConfiguration signals missing or invalid provider credentials and settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrQueueFull signals that the job queue rejected an enqueue.
	ErrQueueFull = errors.New("job queue full")
)

// ValidationError carries a user-facing message and unwraps to ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
