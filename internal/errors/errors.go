// Package errors provides the error taxonomy shared by the decoders, the
// normalizer and the loader. None of these errors reach the UI layer: the
// public decode surfaces log them and report "no image".
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnsupportedFormat is returned when no decoder accepts a file.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidBitmap marks a decode result with zero dimensions or a
	// buffer that does not match its reported dimensions.
	ErrInvalidBitmap = errors.New("invalid bitmap")
)

// DecodeError is a soft decode failure. Stage names the step that failed
// (open, exif, decode, normalize, resample, tool).
type DecodeError struct {
	Stage string
	Path  string
	cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("decode %s failed for %s: %v", e.Stage, e.Path, e.cause)
	}
	return fmt.Sprintf("decode %s failed for %s", e.Stage, e.Path)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.cause
}

// NewDecodeError wraps cause as a decode failure at stage.
func NewDecodeError(stage, path string, cause error) error {
	return &DecodeError{Stage: stage, Path: path, cause: cause}
}

// IsDecodeFailure reports whether err is a DecodeError.
func IsDecodeFailure(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// NonRetryableError represents an error that should not be retried.
type NonRetryableError struct {
	message string
	cause   error
}

// Error implements the error interface.
func (e *NonRetryableError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying cause error for error unwrapping.
func (e *NonRetryableError) Unwrap() error {
	return e.cause
}

// WrapNonRetryable wraps an existing error as non-retryable.
func WrapNonRetryable(cause error) error {
	if cause == nil {
		return nil
	}
	return &NonRetryableError{
		message: "operation failed with non-retryable error",
		cause:   cause,
	}
}

// IsNonRetryable checks if an error is non-retryable.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	var nonRetryableErr *NonRetryableError
	return errors.As(err, &nonRetryableErr)
}

// Is, As and Join re-export the standard helpers so callers importing this
// package under the name "errors" keep access to them.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
	New  = errors.New
)
