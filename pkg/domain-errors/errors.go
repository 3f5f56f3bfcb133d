// Package domainerrors defines the coded errors that services return and that
// httputil translates into HTTP responses.
//
// Stores return sentinel errors; services wrap them here with a code and a
// message that is safe to show to callers.
package domainerrors

import (
	"errors"
	"fmt"

	"ledger/pkg/platform/sentinel"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error is a coded error with a caller-facing message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// ConflictError reports that the caller's version token no longer matches
// the stored row. CurrentETag is the live token the caller should re-read.
type ConflictError struct {
	ResourceType string
	ResourceID   string
	ExpectedETag string
	CurrentETag  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified by another request: expected etag %q, current etag %q",
		e.ResourceType, e.ResourceID, e.ExpectedETag, e.CurrentETag)
}

// Unwrap lets errors.Is(err, sentinel.ErrConflict) hold for conflicts.
func (e *ConflictError) Unwrap() error {
	return sentinel.ErrConflict
}

// Message is the short caller-facing summary.
func (e *ConflictError) Message() string {
	return "The resource was modified by another request."
}

// Detail explains how the caller can recover.
func (e *ConflictError) Detail() string {
	return fmt.Sprintf("%s %s has changed since it was read. Fetch the latest version and retry with its ETag.",
		e.ResourceType, e.ResourceID)
}

// CodeOf returns the code carried by err, or CodeInternal when none is.
func CodeOf(err error) Code {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return CodeConflict
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
