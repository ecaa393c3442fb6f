package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors

// BadRequest creates a 400 error
func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Unauthorized creates a 401 error
func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Domain-specific errors

var (
	ErrBeeperNotFound = &AppError{
		Code: "NOT_FOUND", Message: "Beeper not found", Status: http.StatusNotFound,
	}
	ErrRiderNotFound = &AppError{
		Code: "NOT_FOUND", Message: "Rider not found", Status: http.StatusNotFound,
	}
	ErrEntryNotFound = &AppError{
		Code: "ENTRY_NOT_FOUND", Message: "Queue entry not found", Status: http.StatusNotFound,
	}

	ErrBeeperUnavailable = &AppError{
		Code: "BEEPER_UNAVAILABLE", Message: "Beeper is not currently beeping", Status: http.StatusConflict,
	}
	ErrRiderAlreadyQueued = &AppError{
		Code: "RIDER_ALREADY_QUEUED", Message: "Rider already has an active ride request", Status: http.StatusConflict,
	}
	ErrOutOfOrder = &AppError{
		Code: "OUT_OF_ORDER", Message: "An earlier rider must be handled first", Status: http.StatusConflict,
	}
	ErrAlreadyTerminal = &AppError{
		Code: "ALREADY_TERMINAL", Message: "Ride has already ended", Status: http.StatusConflict,
	}
	ErrStoreConflict = &AppError{
		Code: "STORE_CONFLICT", Message: "Concurrent update conflict, retry with fresh state", Status: http.StatusConflict,
	}
	ErrQueueNotEmpty = &AppError{
		Code: "QUEUE_NOT_EMPTY", Message: "Queue must be empty before stopping", Status: http.StatusConflict,
	}
	ErrGroupTooLarge = &AppError{
		Code: "GROUP_TOO_LARGE", Message: "Group size exceeds beeper capacity", Status: http.StatusBadRequest,
	}
	ErrRateLimitExceeded = &AppError{
		Code:    "RATE_LIMIT_EXCEEDED",
		Message: "Rate limit exceeded. Please try again later",
		Status:  http.StatusTooManyRequests,
	}
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
