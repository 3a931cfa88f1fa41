// Package apperr defines the error taxonomy of the contact API and its mapping to HTTP status
// codes. Services wrap these sentinels with fmt.Errorf("...: %w", ...) and the HTTP layer
// matches them with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("already exists")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrRateLimited        = errors.New("too many requests")
)

// kind couples a sentinel with its stable wire code and HTTP status.
type kind struct {
	err    error
	code   string
	status int
}

var kinds = []kind{
	{ErrInvalidCredentials, "INVALID_CREDENTIALS", http.StatusUnauthorized},
	{ErrTokenInvalid, "TOKEN_INVALID", http.StatusUnauthorized},
	{ErrTokenExpired, "TOKEN_EXPIRED", http.StatusUnauthorized},
	{ErrTokenMalformed, "TOKEN_MALFORMED", http.StatusUnauthorized},
	{ErrIdentityNotFound, "IDENTITY_NOT_FOUND", http.StatusUnauthorized},
	{ErrUnauthenticated, "UNAUTHENTICATED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
	{ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest},
	{ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
}

// Classify returns the wire code and HTTP status for err. Errors outside the taxonomy are
// reported as INTERNAL with status 500, and known is false.
func Classify(err error) (code string, status int, known bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code, k.status, true
		}
	}
	return "INTERNAL", http.StatusInternalServerError, false
}

// Message returns the client-facing message for err. Validation errors keep their full text so
// clients learn which field was rejected; other known errors are reduced to the sentinel text
// and unknown errors to a generic message.
func Message(err error) string {
	if errors.Is(err, ErrValidation) {
		return err.Error()
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal server error"
}
