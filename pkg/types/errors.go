package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds. Domain errors wrap one of these so HTTP handlers
// can map them to status codes with errors.Is.
var (
	ErrBadInput  = errors.New("bad request")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// DomainError pairs a user-facing message with an error kind
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }

// BadInput builds a user-facing 400-class error
func BadInput(format string, args ...interface{}) error {
	return &DomainError{Kind: ErrBadInput, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a user-facing 404-class error
func NotFound(format string, args ...interface{}) error {
	return &DomainError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a user-facing 403-class error
func Forbidden(format string, args ...interface{}) error {
	return &DomainError{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus maps a domain error to an HTTP status code. Unrecognized
// errors map to 500.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrBadInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
