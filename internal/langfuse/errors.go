package langfuse

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthenticationMissing is returned before any request when either key is blank.
// Callers skip the report instead of failing.
var ErrAuthenticationMissing = errors.New("langfuse: credentials are not configured")

// TransientError is a failure worth retrying: a timeout, a connection error,
// a 5xx response or a 429.
type TransientError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("langfuse: GET %s: transient failure (%d): %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("langfuse: GET %s: transient failure: %v", e.Path, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// BackendError is a non-retryable error response from the backend
type BackendError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("langfuse: GET %s: backend error (%d): %s", e.Path, e.StatusCode, e.Message)
}

// MalformedError is a successful response whose body could not be decoded,
// such as an HTML page served by a proxy in front of the backend.
type MalformedError struct {
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("langfuse: GET %s: malformed response: %v", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// IsTransient returns true if the error may succeed on retry
func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

// IsMalformed returns true if the backend answered with an undecodable body
func IsMalformed(err error) bool {
	var e *MalformedError
	return errors.As(err, &e)
}

// IsNotFound returns true if the error is a 404
func IsNotFound(err error) bool {
	var e *BackendError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized returns true if the backend rejected the credentials (401 or 403)
func IsUnauthorized(err error) bool {
	var e *BackendError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}
