package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries an HTTP-mappable status and a stable machine code alongside
// the wrapped cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// NotFound marks a referenced entity as absent or not owned by the caller.
func NotFound(code string, format string, args ...any) *Error {
	return New(http.StatusNotFound, code, fmt.Errorf(format, args...))
}

// Validation marks bad input: size, type, quota, attachment state, malformed
// request. Never retried, never partially applied.
func Validation(code string, format string, args ...any) *Error {
	return New(http.StatusBadRequest, code, fmt.Errorf(format, args...))
}

// Conflict marks validation-class state conflicts (already attached, already
// finalized).
func Conflict(code string, format string, args ...any) *Error {
	return New(http.StatusConflict, code, fmt.Errorf(format, args...))
}

// Internal marks server-side failures such as data-integrity violations.
func Internal(code string, format string, args ...any) *Error {
	return New(http.StatusInternalServerError, code, fmt.Errorf(format, args...))
}

// StorageUnavailable wraps an object-storage collaborator failure.
func StorageUnavailable(err error) *Error {
	return New(http.StatusInternalServerError, "storage_unavailable", err)
}

// ProviderFailure wraps a completion-provider failure.
func ProviderFailure(err error) *Error {
	return New(http.StatusBadGateway, "provider_failure", err)
}

// StatusOf maps any error to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the machine code of err, or "internal_error".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal_error"
}

func IsNotFound(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}
