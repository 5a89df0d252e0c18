package apiclient

import "fmt"

// APIError represents an error response from the admin API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("admin api: %s (status %d)", e.Message, e.StatusCode)
}

// IsUnauthorized returns true if the request was rejected for missing or
// invalid authentication.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsNotFound returns true if the requested resource does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}
