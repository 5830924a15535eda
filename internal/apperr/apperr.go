// Package apperr defines the typed application errors shared by
// handlers and middleware.  Each error carries a kind that maps to an
// HTTP status class; a single Echo error handler at the boundary
// renders them into the response envelope.  Anything that is not an
// *Error falls through to a generic 500.
package apperr

import "net/http"

// Kind classifies an application error and determines its HTTP status.
type Kind int

const (
	KindValidation     Kind = iota // 400, may carry field errors
	KindAuthentication             // 401
	KindAuthorization              // 403
	KindNotFound                   // 404
	KindConflict                   // 409
	KindRateLimited                // 429
	KindInternal                   // 500
)

// Error is a typed application error with a user-facing message and an
// optional per-field error map for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	// Code is an optional machine-readable identifier included in the
	// response body (e.g. CSRF_TOKEN_MISSING).
	Code string
}

func (e *Error) Error() string { return e.Message }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string, fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func Authorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Internal(msg string) *Error {
	return &Error{Kind: KindInternal, Message: msg}
}
