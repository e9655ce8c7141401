package errors

import (
	"errors"
	"fmt"
)

// Error is a custom error type that contains a code and a message.
type Error struct {
	Code    int
	Message string
	Err     error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new error.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new error with a formatted message.
func Newf(code int, format string, a ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, a...),
	}
}

// Wrap creates a new error with the given code that wraps err.
func Wrap(code int, err error, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	// ErrUnknown is an unknown error.
	ErrUnknown = iota
	// ErrNotFound is a not found error.
	ErrNotFound
	// ErrBadRequest is a bad request error.
	ErrBadRequest
	// ErrInternal is an internal error.
	ErrInternal
	// ErrConfiguration is raised when a component is built from invalid settings.
	ErrConfiguration
	// ErrResolution is raised when a secret or a named reference cannot be resolved.
	ErrResolution
)

// Configuration creates a configuration error.
func Configuration(format string, a ...interface{}) *Error {
	return Newf(ErrConfiguration, format, a...)
}

// Resolution creates a resolution error.
func Resolution(format string, a ...interface{}) *Error {
	return Newf(ErrResolution, format, a...)
}

// Code returns the code of the first *Error in err's chain, or ErrUnknown.
func Code(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

func IsConfiguration(err error) bool {
	return err != nil && Code(err) == ErrConfiguration
}

func IsResolution(err error) bool {
	return err != nil && Code(err) == ErrResolution
}
