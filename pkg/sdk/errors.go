package photodex

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by APIError. Use errors.Is() to check.
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicate              = errors.New("duplicate image")
	ErrValidation             = errors.New("validation failed")
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	ErrUnavailable            = errors.New("service unavailable")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("photodex: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is maps the HTTP status to the SDK sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrDuplicate:
		return e.StatusCode == http.StatusConflict
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusRequestEntityTooLarge
	case ErrEmbeddingProviderError:
		return e.StatusCode == http.StatusBadGateway
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}
