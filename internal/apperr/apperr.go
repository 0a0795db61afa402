// Package apperr defines the closed set of failures the services and
// middleware can raise. The HTTP boundary serializes them; nothing in
// between recovers or retries.
package apperr

import (
	"net/http"
	"strings"
)

type Kind int

const (
	KindValidation Kind = iota
	KindNotAuthenticated
	KindInvalidToken
	KindPasswordChanged
	KindAccountDisabled
	KindRefreshInvalid
	KindForbidden
	KindNotFound
	KindConflict
	KindInternal
)

type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type Error struct {
	Kind   Kind
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Status maps the error kind onto the HTTP status scheme of the API.
// Conflict is flattened to 400 and Forbidden to 401, so unauthorized
// callers learn nothing about resource existence.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotAuthenticated, KindInvalidToken, KindPasswordChanged,
		KindAccountDisabled, KindRefreshInvalid, KindForbidden:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Fields: []FieldError{{Message: message}}}
}

func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Fields: fields}
}

func BadRequest(message string) *Error {
	return newError(KindValidation, message)
}

func NotAuthenticated(message string) *Error {
	return newError(KindNotAuthenticated, message)
}

func InvalidToken(message string) *Error {
	return newError(KindInvalidToken, message)
}

func PasswordChanged(message string) *Error {
	return newError(KindPasswordChanged, message)
}

func AccountDisabled(message string) *Error {
	return newError(KindAccountDisabled, message)
}

func RefreshInvalid(message string) *Error {
	return newError(KindRefreshInvalid, message)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message)
}

func Conflict(message string) *Error {
	return newError(KindConflict, message)
}

func Internal(message string) *Error {
	return newError(KindInternal, message)
}
