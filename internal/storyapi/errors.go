package storyapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("storyapi: service unavailable")

	// ErrNetwork wraps transport failures: DNS, refused connections,
	// timeouts, truncated bodies.
	ErrNetwork = errors.New("storyapi: network error")
)

// APIError is a failure reported by the API itself, either through the
// {error: true, message} envelope or an HTTP error status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storyapi: %s (status %d)", e.Message, e.Status)
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether the API rejected the token.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusUnauthorized
}

// IsTransient reports whether err means the API could not be reached or
// failed on its side, so cached data may stand in. Client errors (4xx)
// and cancellation are not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNetwork) {
		return true
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status >= 500
	}
	return false
}

// Message returns text suitable for showing to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable):
		return "The story service is temporarily unavailable. Please try again shortly."
	case errors.Is(err, ErrNetwork):
		return "Could not reach the story service. Check your connection."
	}
	if apiErr, ok := AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong. Please try again."
}
