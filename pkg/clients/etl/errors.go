package etl

import (
	"errors"
	"fmt"
)

// Error represents a non-2xx answer from the ETL service
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Body       string `json:"body,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("etl: %s (status: %d, request_id: %s)", e.Message, e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("etl: %s (status: %d)", e.Message, e.StatusCode)
}

// IsRetryable returns true if the error might be resolved by retrying
func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsAuthError returns true if the error is related to authentication
func (e *Error) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsNotFound returns true if the run or connector was not found
func (e *Error) IsNotFound() bool {
	return e.StatusCode == 404
}

var ErrRunFailed = errors.New("etl run failed")

// RunFailedError is returned when a run reached the failed status.
type RunFailedError struct {
	RunID   string
	Details string
}

func (e *RunFailedError) Error() string {
	details := e.Details
	if details == "" {
		details = "Unknown error"
	}
	return fmt.Sprintf("ETL failed: %s", details)
}

func (e *RunFailedError) Is(target error) bool {
	return target == ErrRunFailed
}

// AsError returns the ETL API error wrapped in err, if any
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	if e, ok := AsError(err); ok {
		return e.IsRetryable()
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	if e, ok := AsError(err); ok {
		return e.IsAuthError()
	}
	return false
}

// IsNotFoundError checks if an error means the service does not know the run
// or connector
func IsNotFoundError(err error) bool {
	if e, ok := AsError(err); ok {
		return e.IsNotFound()
	}
	return false
}
