package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeMismatch     = "CONFIGURATION_MISMATCH"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ValidationError rejects a registry write. It never reaches delivery.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// MismatchError reports identifiers that exist but do not belong together,
// e.g. a delivery id redelivered through a webhook that does not own it.
type MismatchError struct {
	Message string
}

func (e *MismatchError) Error() string {
	return e.Message
}

func Mismatch(format string, args ...interface{}) error {
	return &MismatchError{Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return stderrors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

func IsMismatch(err error) bool {
	var m *MismatchError
	return stderrors.As(err, &m)
}

// Status maps err onto an HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest, ErrCodeInvalidInput
	case IsNotFound(err):
		return http.StatusNotFound, ErrCodeNotFound
	case IsMismatch(err):
		return http.StatusConflict, ErrCodeMismatch
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteFromError writes err using its taxonomy. Internal errors are not echoed.
func WriteFromError(w http.ResponseWriter, err error) {
	status, code := Status(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	WriteError(w, status, code, message, nil)
}
