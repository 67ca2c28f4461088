// Package apperr defines the error kinds shared by the proxy components and
// their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error by who is responsible for it
type Kind string

const (
	// Caller errors, reported before any upstream call is issued
	InvalidInput  Kind = "invalid_input"
	InvalidSource Kind = "invalid_source"
	InvalidMethod Kind = "invalid_method"

	// Collaborator errors
	UpstreamError    Kind = "upstream_error"
	MalformedArticle Kind = "malformed_article"
)

// Error is an error tagged with a Kind. Message is safe to show to callers;
// Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same Kind, so
// errors.Is(err, apperr.New(apperr.InvalidSource, "")) works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around cause
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsCaller reports whether err is a validation error attributable to the caller
func IsCaller(err error) bool {
	switch KindOf(err) {
	case InvalidInput, InvalidSource, InvalidMethod:
		return true
	}
	return false
}

// Message returns the caller-facing message of err
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error"
}

// StatusCode maps err to the HTTP status written by the handlers
func StatusCode(err error) int {
	if IsCaller(err) {
		return http.StatusBadRequest
	}
	switch KindOf(err) {
	case UpstreamError, MalformedArticle:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
