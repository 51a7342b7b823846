package diffusion

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoBaseURL is returned when the server URL is missing.
	ErrNoBaseURL = errors.New("diffusion: base URL required")

	// ErrInvalidStrength is returned for a strength outside [0,1].
	ErrInvalidStrength = errors.New("diffusion: strength must be in [0,1]")

	// ErrInvalidSteps is returned for a step count below 1.
	ErrInvalidSteps = errors.New("diffusion: steps must be at least 1")

	// ErrInvalidGuidance is returned for a negative guidance scale.
	ErrInvalidGuidance = errors.New("diffusion: guidance scale must be >= 0")

	// ErrInvalidSize is returned for a non-positive generation size.
	ErrInvalidSize = errors.New("diffusion: size must be positive")

	// ErrEmptyResponse is returned when the server answers 200 with no
	// images.
	ErrEmptyResponse = errors.New("diffusion: server returned no images")
)

// APIError represents an error response from the inference server.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the server.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("diffusion: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true for HTTP 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true for HTTP 5xx.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if a retry could plausibly succeed.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// wrapErr adds client context to an error.
func wrapErr(msg string, err error) error {
	return fmt.Errorf("diffusion: %s: %w", msg, err)
}
