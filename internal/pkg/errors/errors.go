package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the user-facing failure class of an error.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindUnavailable      Kind = "unavailable"
	KindTimeout          Kind = "timeout"
	KindConflict         Kind = "conflict"
	KindUnknown          Kind = "unknown"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int         `json:"code"`
	Kind    Kind        `json:"kind"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code and message, so copies made by
// WithDetails or Wrap still match the sentinel they came from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a new AppError
func New(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap returns a copy of e carrying err as its cause
func (e *AppError) Wrap(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// WithDetails returns a copy of e with details attached
func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithMessage returns a copy of e with a different user-facing message
func (e *AppError) WithMessage(message string) *AppError {
	clone := *e
	clone.Message = message
	return &clone
}

// Common errors
var (
	// 400 Bad Request
	ErrBadRequest      = New(http.StatusBadRequest, KindValidation, "Invalid request")
	ErrValidation      = New(http.StatusBadRequest, KindValidation, "Validation failed")
	ErrInvalidRoomCode = New(http.StatusBadRequest, KindValidation, "Enter a 6-character code")
	ErrEventInPast     = New(http.StatusBadRequest, KindValidation, "Please pick a future date and time.")

	// 401 Unauthorized
	ErrUnauthorized = New(http.StatusUnauthorized, KindPermissionDenied, "Sign in to continue")
	ErrInvalidToken = New(http.StatusUnauthorized, KindPermissionDenied, "Invalid token")
	ErrTokenExpired = New(http.StatusUnauthorized, KindPermissionDenied, "Token has expired")

	// 403 Forbidden
	ErrPermissionDenied  = New(http.StatusForbidden, KindPermissionDenied, "Permission denied")
	ErrChatDisabled      = New(http.StatusForbidden, KindPermissionDenied, "Chat is disabled in this room")
	ErrReactionsDisabled = New(http.StatusForbidden, KindPermissionDenied, "Reactions are disabled in this room")

	// 404 Not Found
	ErrNotFound            = New(http.StatusNotFound, KindNotFound, "Resource not found")
	ErrRoomNotFound        = New(http.StatusNotFound, KindNotFound, "Room not found")
	ErrRoomCodeNotFound    = New(http.StatusNotFound, KindNotFound, "Room not found. Check the code.")
	ErrParticipantNotFound = New(http.StatusNotFound, KindNotFound, "Participant not found")
	ErrEventNotFound       = New(http.StatusNotFound, KindNotFound, "Watch event not found")

	// 409 Conflict
	ErrRoomClosed          = New(http.StatusConflict, KindConflict, "This room has ended")
	ErrParticipantInactive = New(http.StatusConflict, KindConflict, "Participant has left the room")

	// 422 Unprocessable Entity
	ErrRoomFull = New(http.StatusUnprocessableEntity, KindConflict, "Room is full")

	// 429 Too Many Requests
	ErrTooManyRequests = New(http.StatusTooManyRequests, KindUnavailable, "Too many requests, try again later")

	// 500 Internal Server Error
	ErrInternal = New(http.StatusInternalServerError, KindUnknown, "Something went wrong")

	// 503 Service Unavailable
	ErrUnavailable       = New(http.StatusServiceUnavailable, KindUnavailable, "Service unavailable or rate limited")
	ErrRoomCodeExhausted = New(http.StatusServiceUnavailable, KindUnavailable, "Could not allocate a room code, try again")

	// 504 Gateway Timeout
	ErrTimeout = New(http.StatusGatewayTimeout, KindTimeout, "The request timed out")
)

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// GetMessage returns the error message
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}

// KindOf returns the failure class of err
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}
