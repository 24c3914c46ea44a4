// Package errors provides the typed, coded error used across the service.
//
// Error carries a stable numeric code, the HTTP status the boundary maps it
// to, a human-readable message, optional structured details, and an optional
// cause. It implements the error and Unwrap interfaces for seamless
// integration with Go's errors package.
//
// Usage:
//
//	err := errors.NotFound("prompt not found")
//	err = err.WithDetails(map[string]any{"prompt_id": id})
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type every layer of the service raises.
// The HTTP boundary maps Code and HTTPStatus into the response envelope.
type Error struct {
	// Code is the stable application-level error code (e.g. 40400).
	Code int

	// HTTPStatus is the HTTP status the boundary responds with.
	HTTPStatus int

	// Message is the human-readable description.
	Message string

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a human-readable representation of the error.
func (e *Error) Error() string {
	base := fmt.Sprintf("[%d] %s", e.Code, e.Message)

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and
// errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails returns the error with the given details map set.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithCause returns the error with the underlying cause attached.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// As extracts an *Error from err's chain, reporting whether one was found.
func As(err error) (*Error, bool) {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given application code anywhere in its
// chain.
func Is(err error, code int) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Reason returns the "reason" detail of err, or "unknown" when err carries
// none. Metrics and log fields use it to label render failures.
func Reason(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "unknown"
	}
	reason, ok := appErr.Details["reason"].(string)
	if !ok || reason == "" {
		return "unknown"
	}
	return reason
}
