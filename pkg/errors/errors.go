// Package errors provides structured error types for cardpress.
//
// Errors carry a machine-readable code so the batch report, the CLI and the
// HTTP service can all classify failures the same way:
//   - template-level codes (DOCUMENT_LOAD, PAGE_RENDER, INVALID_CONFIG) abort a
//     batch before any guest is processed
//   - guest-level codes (ENCODING, RENDERER_UNAVAILABLE, ZONE_BLEED) fail one
//     guest and leave the rest of the batch untouched
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "zone %q: font_size must be > 0", id)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // reject the job
//	}
//
//	err := errors.Wrap(errors.ErrCodeDocumentLoad, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Template errors
	ErrCodeDocumentLoad Code = "DOCUMENT_LOAD"
	ErrCodePageRender   Code = "PAGE_RENDER"
	ErrCodeFontNotFound Code = "FONT_NOT_FOUND"

	// Per-guest errors
	ErrCodeRendererUnavailable Code = "RENDERER_UNAVAILABLE"
	ErrCodeEncoding            Code = "ENCODING"
	ErrCodeZoneBleed           Code = "ZONE_BLEED"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Internal errors
	ErrCodeCanceled    Code = "CANCELED"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// The outermost *Error in the chain decides.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// TemplateLevel reports whether err invalidates the whole batch rather than a
// single guest.
func TemplateLevel(err error) bool {
	switch GetCode(err) {
	case ErrCodeDocumentLoad, ErrCodePageRender, ErrCodeInvalidConfig, ErrCodeFontNotFound:
		return true
	}
	return false
}

// ValidationError collects every problem found while validating a document
// so that callers see all of them at once.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "validation failed"
	case 1:
		return e.Problems[0]
	}
	return fmt.Sprintf("%s (and %d more)", e.Problems[0], len(e.Problems)-1)
}

// Add records a problem.
func (e *ValidationError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Err returns an INVALID_CONFIG error wrapping e, or nil when no problems were
// recorded.
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return Wrap(ErrCodeInvalidConfig, e, "invalid configuration")
}
