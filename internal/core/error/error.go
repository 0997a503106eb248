package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// RetrievalErrorMessage describes vector index failures.
	RetrievalErrorMessage = "retrieval backend failed"
	// CompletionErrorMessage describes model completion failures.
	CompletionErrorMessage = "model completion failed"
	// SchemaErrorMessage describes a structured completion that did not parse.
	SchemaErrorMessage = "model output did not match the expected schema"
	// BookingErrorMessage describes booking persistence failures.
	BookingErrorMessage = "booking persistence failed"
)

// Error wraps an underlying error with an HTTP status and a safe message.
// The message is what may be surfaced to users; the wrapped cause is for logs.
type Error struct {
	Err       error
	Status    int
	Message   string
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Infra marks an infrastructure failure (store, index, model transport) as
// retryable. Idempotent reads may be retried; writes must not be.
func Infra(err error, message string) *Error {
	return &Error{
		Err:       err,
		Status:    http.StatusServiceUnavailable,
		Message:   message,
		Retryable: true,
	}
}

// Schema marks a structured model output that failed validation. Never
// retryable as-is; the handler degrades to a generic response.
func Schema(err error) *Error {
	return &Error{
		Err:     err,
		Status:  http.StatusBadGateway,
		Message: SchemaErrorMessage,
	}
}

// IsRetryable reports whether err (anywhere in the chain) is a retryable
// infrastructure error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}
