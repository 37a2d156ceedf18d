package web

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the uniform application error: an HTTP status plus a
// user-visible message. Internal details stay in the wrapped cause.
type AppError struct {
	Code    int
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.cause }

func NewError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func NotFound(what string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: what + " not found"}
}

func Validation(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func Conflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg}
}

func Upstream(msg string, cause error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, cause: cause}
}

func Internal(cause error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: "internal server error", cause: cause}
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
