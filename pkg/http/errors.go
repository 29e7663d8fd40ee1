package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows its HTTP status and renders as
// {code, message, field} in a response body.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the cause. It is logged, never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func newAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func BadRequestError(message string) *AppError {
	return newAppError("ERR_BAD_REQUEST", http.StatusBadRequest, message)
}

func NotFoundError(message string) *AppError {
	return newAppError("ERR_NOT_FOUND", http.StatusNotFound, message)
}

func ConflictError(message string) *AppError {
	return newAppError("ERR_CONFLICT", http.StatusConflict, message)
}

func UnprocessableError(message string) *AppError {
	return newAppError("ERR_UNPROCESSABLE", http.StatusUnprocessableEntity, message)
}

func UnavailableError(message string) *AppError {
	return newAppError("ERR_UNAVAILABLE", http.StatusServiceUnavailable, message)
}

func InternalError(message string) *AppError {
	return newAppError("ERR_INTERNAL", http.StatusInternalServerError, message)
}
