package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents error information. Kind is the failure class a
// client can branch on without parsing the message.
type ErrorInfo struct {
	Code    int            `json:"code"`
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
	Details interface{}    `json:"details,omitempty"`
}

// Success sends a success response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// SuccessWithMessage sends a success response with a message
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a 201 created response
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// NoContent sends a 204 no content response
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// NewErrorInfo converts err to its wire form; unknown errors become ErrInternal
func NewErrorInfo(err error) *ErrorInfo {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.ErrInternal
	}
	return &ErrorInfo{
		Code:    appErr.Code,
		Kind:    appErr.Kind,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}

// Error sends an error response
func Error(c *gin.Context, err error) {
	info := NewErrorInfo(err)
	c.JSON(info.Code, Response{
		Success: false,
		Error:   info,
	})
}

// Abort sends an error response and stops the handler chain
func Abort(c *gin.Context, err error) {
	info := NewErrorInfo(err)
	c.AbortWithStatusJSON(info.Code, Response{
		Success: false,
		Error:   info,
	})
}

// ErrorWithStatus sends an error response with a specific status code
func ErrorWithStatus(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    status,
			Kind:    kindForStatus(status),
			Message: message,
		},
	})
}

func kindForStatus(status int) apperrors.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperrors.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.KindPermissionDenied
	case http.StatusNotFound:
		return apperrors.KindNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return apperrors.KindConflict
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return apperrors.KindUnavailable
	case http.StatusGatewayTimeout:
		return apperrors.KindTimeout
	}
	return apperrors.KindUnknown
}

// BadRequest sends a 400 bad request response
func BadRequest(c *gin.Context, message string) {
	ErrorWithStatus(c, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = apperrors.ErrUnauthorized.Message
	}
	ErrorWithStatus(c, http.StatusUnauthorized, message)
}

// NotFound sends a 404 not found response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = apperrors.ErrNotFound.Message
	}
	ErrorWithStatus(c, http.StatusNotFound, message)
}

// ValidationError sends a 400 response with validation errors
func ValidationError(c *gin.Context, details interface{}) {
	Error(c, apperrors.ErrValidation.WithDetails(details))
}

// ListResponse wraps an offset-paged list
type ListResponse struct {
	Items  interface{} `json:"items"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}
