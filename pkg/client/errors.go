package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNotFound is wrapped by APIError for 404 responses.
	ErrNotFound = errors.New("not found")
)

// APIError represents a failed API call with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.ErrorClass == ErrorClassNetwork {
		if e.Err != nil {
			return fmt.Sprintf("API network error: %s: %v", e.Message, e.Err)
		}
		return fmt.Sprintf("API network error: %s", e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a request that failed before a
// response arrived (refused connection, DNS failure, timeout).
func IsNetworkError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorClass == ErrorClassNetwork
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
