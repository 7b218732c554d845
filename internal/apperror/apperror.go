// Package apperror defines the domain errors shared by every layer.
//
// Services and repositories return *AppError values that wrap one of the
// sentinel errors below. Callers branch with errors.Is on the sentinel and
// read the human-readable Message from the AppError; the HTTP layer maps
// each sentinel to a status code in one place (handler.writeError).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrMalformedElection = errors.New("malformed election")
)

type AppError struct {
	Err     error  // sentinel this error matches with errors.Is
	Message string // human-readable error message
	Field   string // optional: field causing the error
	Cause   error  // optional: underlying driver or network error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause so errors.Is
// matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when credentials are missing or wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AlreadyVoted reports a second ballot for the same (user, election) pair.
// It is never retried.
func AlreadyVoted(userID, electionID string) *AppError {
	return &AppError{
		Err:     ErrAlreadyVoted,
		Message: fmt.Sprintf("user %s has already voted in election %s", userID, electionID),
	}
}

// StoreUnavailable wraps a backend or network failure for operation op.
// The cause is kept for logging and errors.Is (e.g. context.DeadlineExceeded)
// but never shown to API clients.
func StoreUnavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStoreUnavailable,
		Message: fmt.Sprintf("ballot store unavailable during %s", op),
		Cause:   cause,
	}
}

// MalformedElection flags an election whose data breaks an invariant
// (end before start, duplicate candidate names). It also matches
// ErrValidation so handlers answer 400.
func MalformedElection(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Cause:   ErrMalformedElection,
	}
}

// IsAppError reports whether err carries a typed application error.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}
