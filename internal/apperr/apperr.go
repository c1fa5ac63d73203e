// Package apperr carries HTTP-aware application errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error with a stable code and HTTP status.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"-"`
	cause   error
}

func (e *Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error without exposing it to clients.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
)

func Validation(message, details string) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details, Status: http.StatusBadRequest}
}

func BadRequest(message string) *Error {
	return &Error{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message, Status: http.StatusForbidden}
}

func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Message: resource + " not found", Status: http.StatusNotFound}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

func Unavailable(message string) *Error {
	return &Error{Code: CodeUnavailable, Message: message, Status: http.StatusServiceUnavailable}
}

func Timeout(message string) *Error {
	return &Error{Code: CodeTimeout, Message: message, Status: http.StatusGatewayTimeout}
}

func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError, cause: cause}
}

// As returns the application error in err's chain, or an internal error
// wrapping err when there is none.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal server error", err)
}
