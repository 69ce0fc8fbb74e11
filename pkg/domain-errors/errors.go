// Package domainerrors carries coded errors across layers. Services return these so
// callers (the orchestrator, CLI, daemon) can branch on the failure category without
// string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	// CodeInvalidInput: a caller-supplied value failed validation at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound: a referenced image or record does not exist or cannot be read.
	CodeNotFound Code = "not_found"
	// CodeDocumentRejected: the image was readable but failed plausibility, type or
	// confidence checks.
	CodeDocumentRejected Code = "document_rejected"
	// CodeFaceRejected: no detectable face where one is required.
	CodeFaceRejected Code = "face_rejected"
	// CodeUnavailable: an infrastructure dependency (OCR engine, store) failed.
	CodeUnavailable Code = "unavailable"
	// CodeTimeout: the operation ran out of time or was cancelled.
	CodeTimeout Code = "timeout"
	// CodeInternal: anything unexpected.
	CodeInternal Code = "internal"
)

// Retryable reports whether the whole submission may be retried after this failure.
func (c Code) Retryable() bool {
	return c == CodeUnavailable || c == CodeTimeout
}

// Error is a coded error with a user-safe message and an optional cause.
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

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost user-safe message, or fallback when err is uncoded.
func MessageOf(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}
