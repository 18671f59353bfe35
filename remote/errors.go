package remote

import (
	"errors"
	"fmt"
	"time"
)

// ErrReconnectRequired indicates the stored credentials have been revoked and
// the account must be reconnected by the user. Callers must not retry it.
var ErrReconnectRequired = errors.New("remote account needs reconnect")

// APIError represents an error from a remote API operation.
// It carries the HTTP status code, operation context and the response body
// so callers can distinguish not-found, rate-limit and auth failures.
type APIError struct {
	Operation  string // e.g. "CreateTask", "DeleteTask", "ListTasks"
	StatusCode int    // HTTP status code (0 if not an HTTP error)
	Message    string // Human-readable error message
	TaskID     string // Optional: affected remote task ID
	ListID     string // Optional: affected remote list ID
	Body       string // Optional: response body for debugging
	RetryAfter time.Duration // Optional: server-provided retry hint on 429
	Err        error  // Optional: underlying error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying error for error wrapping
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is a 404 Not Found
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsRateLimited returns true if the error is a 429 Too Many Requests
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if the error is a 401 Unauthorized or 403 Forbidden
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsServerError returns true if the error is a 5xx server error
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// NewAPIError creates a new APIError
func NewAPIError(operation string, statusCode int, message string) *APIError {
	return &APIError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
	}
}

// WithTaskID adds the remote task ID to the error for context
func (e *APIError) WithTaskID(id string) *APIError {
	e.TaskID = id
	return e
}

// WithListID adds the remote list ID to the error for context
func (e *APIError) WithListID(listID string) *APIError {
	e.ListID = listID
	return e
}

// WithBody adds the response body to the error for debugging
func (e *APIError) WithBody(body string) *APIError {
	e.Body = body
	return e
}

// WithRetryAfter records the server's retry hint
func (e *APIError) WithRetryAfter(d time.Duration) *APIError {
	e.RetryAfter = d
	return e
}

// IsNotFound reports whether err is an APIError for a missing remote item.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// IsRateLimited reports whether err is an APIError for a rate-limit response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimited()
}

// IsUnauthorized reports whether err is an APIError for an auth failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}
