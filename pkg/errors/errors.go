package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned sentinels still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Reason codes reported by rejected workflow operations.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeWrongStatus           = "WRONG_STATUS"
	CodePermissionDenied      = "PERMISSION_DENIED"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeIncompleteSubmissions = "INCOMPLETE_SUBMISSIONS"
)

// Predefined errors for common scenarios.
var (
	ErrNotFound              = New(CodeNotFound, http.StatusNotFound, "resource not found")
	ErrWrongStatus           = New(CodeWrongStatus, http.StatusConflict, "gradesheet status does not allow this operation")
	ErrPermissionDenied      = New(CodePermissionDenied, http.StatusForbidden, "permission denied")
	ErrValidation            = New(CodeValidationFailed, http.StatusBadRequest, "validation failed")
	ErrIncompleteSubmissions = New(CodeIncompleteSubmissions, http.StatusConflict, "not every subject has been submitted")
	ErrUnauthorized          = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInternal              = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrFeatureDisabled       = New("FEATURE_DISABLED", http.StatusNotFound, "feature disabled")
	ErrCacheMiss             = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrStoreConflict         = New("STORE_CONFLICT", http.StatusConflict, "workflow store was changed by another writer, retry the request")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// ReasonCode extracts the reason code from err, or "" when err is nil.
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}
