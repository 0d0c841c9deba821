package utils

import (
	"errors"
	"fmt"
)

// UserError represents an error with a user-friendly message and solution
type UserError struct {
	Message  string
	Solution string
	Err      error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Solution != "" {
		msg += fmt.Sprintf("\n\n💡 Solution: %s", e.Solution)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new UserError
func NewUserError(message, solution string, err error) *UserError {
	return &UserError{
		Message:  message,
		Solution: solution,
		Err:      err,
	}
}

// CredentialsRejectedError wraps a 401/403 from the tracing backend
func CredentialsRejectedError(host string, err error) *UserError {
	return NewUserError(
		fmt.Sprintf("Langfuse at %s rejected the configured credentials", host),
		"Check LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY (or --public-key/--secret-key) belong to this project",
		err,
	)
}

// BackendFailureError wraps an unrecoverable backend error
func BackendFailureError(host string, err error) *UserError {
	return NewUserError(
		fmt.Sprintf("Langfuse at %s returned an error", host),
		"Check LANGFUSE_HOST points at a Langfuse instance and retry with --debug for request details",
		err,
	)
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
