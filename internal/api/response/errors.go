package response

import (
	"errors"
	"net/http"

	"github.com/good-yellow-bee/followwatch/internal/storage"
	"github.com/good-yellow-bee/followwatch/internal/tracker"
)

// Error represents an API error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeAccountLocked     = "ACCOUNT_LOCKED"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeRefreshInProgress = "REFRESH_IN_PROGRESS"
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
)

// Standard errors
var (
	ErrUnauthorized = &Error{
		Code:    ErrCodeUnauthorized,
		Message: "Invalid credentials",
		Status:  http.StatusUnauthorized,
	}

	ErrNotFound = &Error{
		Code:    ErrCodeNotFound,
		Message: "Resource not found",
		Status:  http.StatusNotFound,
	}

	ErrInternalServer = &Error{
		Code:    ErrCodeInternalError,
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
	}

	ErrRateLimited = &Error{
		Code:    ErrCodeRateLimited,
		Message: "Too many requests",
		Status:  http.StatusTooManyRequests,
	}

	ErrAccountLocked = &Error{
		Code:    ErrCodeAccountLocked,
		Message: "Account temporarily locked due to too many failed attempts",
		Status:  http.StatusTooManyRequests,
	}

	ErrRefreshInProgress = &Error{
		Code:    ErrCodeRefreshInProgress,
		Message: "A refresh of this profile is already running",
		Status:  http.StatusConflict,
	}

	ErrSourceUnavailable = &Error{
		Code:    ErrCodeSourceUnavailable,
		Message: "Follower source unavailable",
		Status:  http.StatusBadGateway,
	}
)

// NewBadRequest creates a bad request error with custom message.
func NewBadRequest(message string) *Error {
	return &Error{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewValidationError creates a validation error with custom message.
func NewValidationError(message string) *Error {
	return &Error{
		Code:    ErrCodeValidationFailed,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewConflict creates a conflict error with custom message.
func NewConflict(message string) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// NewNotFound creates a not found error with custom message.
func NewNotFound(message string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: message,
		Status:  http.StatusNotFound,
	}
}

// FromError maps a domain error onto an API error. Unknown errors become
// ErrInternalServer so storage details never reach the client.
func FromError(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, tracker.ErrInProgress):
		return ErrRefreshInProgress
	case errors.Is(err, tracker.ErrSourceUnavailable):
		return ErrSourceUnavailable
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return NewConflict(err.Error())
	default:
		return ErrInternalServer
	}
}
