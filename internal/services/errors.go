package services

import (
	"errors"
)

// ErrorKind classifies every failure the analysis pipeline can report.
type ErrorKind string

const (
	ErrorKindValidation           ErrorKind = "validation"
	ErrorKindExtraction           ErrorKind = "extraction"
	ErrorKindInferenceUnavailable ErrorKind = "inference_unavailable"
	ErrorKindInferenceTimeout     ErrorKind = "inference_timeout"
	ErrorKindInferenceProtocol    ErrorKind = "inference_protocol"
)

// IsClientError reports whether the failure was caused by the caller's input.
func (k ErrorKind) IsClientError() bool {
	return k == ErrorKindValidation || k == ErrorKindExtraction
}

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrNoText            = errors.New("file contains no text")
)

// Error is a classified pipeline failure. Message is safe to return to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
