// Package httpx provides HTTP response utilities and the error taxonomy shared
// by the catalog clients and the HTTP surfaces.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors. Every failure surfaced by the catalog clients matches
// exactly one of the first five with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("resource not found")
	ErrAuthentication = errors.New("authentication failed")
	ErrUpstream       = errors.New("upstream error")
	ErrTransport      = errors.New("transport error")

	// ErrDuplicate is raised by the local catalog service and travels over
	// the wire as a validation failure.
	ErrDuplicate = errors.New("duplicate entry")
)

// Error carries a classified failure. Message is the text a user should see:
// the server-supplied message when one was present.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

// NewError builds an *Error of the given kind.
func NewError(kind error, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage returns the server-supplied message carried by err, or fallback
// when none is available.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// KindName returns a short label for the kind of err, used in logs and
// metric labels.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicate):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrAuthentication):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
