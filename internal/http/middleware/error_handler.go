package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrBadRequest wraps an error with 400 status
type ErrBadRequest struct{ Err error }

func (e *ErrBadRequest) Error() string { return e.Err.Error() }
func (e *ErrBadRequest) Unwrap() error { return e.Err }

// ErrUnauthorized wraps an error with 401 status
type ErrUnauthorized struct{ Err error }

func (e *ErrUnauthorized) Error() string { return e.Err.Error() }
func (e *ErrUnauthorized) Unwrap() error { return e.Err }

// ErrForbidden wraps an error with 403 status
type ErrForbidden struct{ Err error }

func (e *ErrForbidden) Error() string { return e.Err.Error() }
func (e *ErrForbidden) Unwrap() error { return e.Err }

// ErrNotFound wraps an error with 404 status
type ErrNotFound struct{ Err error }

func (e *ErrNotFound) Error() string { return e.Err.Error() }
func (e *ErrNotFound) Unwrap() error { return e.Err }

// ErrConflict wraps an error with 409 status, used for illegal job
// transitions and other state-machine violations.
type ErrConflict struct{ Err error }

func (e *ErrConflict) Error() string { return e.Err.Error() }
func (e *ErrConflict) Unwrap() error { return e.Err }

// ErrRequestTooLarge wraps an error with 413 status
type ErrRequestTooLarge struct{ Err error }

func (e *ErrRequestTooLarge) Error() string { return e.Err.Error() }
func (e *ErrRequestTooLarge) Unwrap() error { return e.Err }

// ErrRateLimit wraps a rate-limit rejection with the retry delay, for 429
// responses from RateLimit.
type ErrRateLimit struct {
	Err        error
	RetryAfter int
}

func (e *ErrRateLimit) Error() string { return e.Err.Error() }
func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrServiceUnavailable wraps an error with 503 status, used when an
// upstream LLM provider chain or cloud OCR dependency is unreachable.
type ErrServiceUnavailable struct{ Err error }

func (e *ErrServiceUnavailable) Error() string { return e.Err.Error() }
func (e *ErrServiceUnavailable) Unwrap() error { return e.Err }

// ErrorPayload is the structured JSON error response.
type ErrorPayload struct {
	Error            string         `json:"error"`
	Code             string         `json:"code,omitempty"`
	ValidationReason string         `json:"validation_reason,omitempty"`
	RequestID        string         `json:"request_id,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// NewErrorPayload builds an ErrorPayload for a given status/message/request ID.
func NewErrorPayload(status int, message, requestID string) ErrorPayload {
	return ErrorPayload{
		Error:     message,
		Code:      codeForStatus(status),
		RequestID: requestID,
	}
}

// WithDetails attaches field-level detail to the payload and returns it.
func (p ErrorPayload) WithDetails(details map[string]any) ErrorPayload {
	p.Details = details
	return p
}

// WithValidationReason attaches a human-readable validation reason.
func (p ErrorPayload) WithValidationReason(reason string) ErrorPayload {
	p.ValidationReason = reason
	return p
}

// GetRequestID reads the request ID stashed by the RequestID middleware.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Request.Context().Value(RequestIDContextKey).(string); ok {
		return v
	}
	return ""
}

// ErrorHandler returns middleware that centralizes error handling.
// Handlers should call c.Error(err) and return without writing a response;
// this middleware maps errors to status codes and returns consistent JSON.
// Skips when the handler has already written a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := statusForError(err)
		requestID := GetRequestID(c)

		slog.Debug("error handler", "status", status, "error", err.Error(), "request_id", requestID)
		c.JSON(status, NewErrorPayload(status, err.Error(), requestID))
	}
}

func statusForError(err error) int {
	switch {
	case errors.As(err, new(*ErrBadRequest)):
		return http.StatusBadRequest
	case errors.As(err, new(*ErrUnauthorized)):
		return http.StatusUnauthorized
	case errors.As(err, new(*ErrForbidden)):
		return http.StatusForbidden
	case errors.As(err, new(*ErrNotFound)):
		return http.StatusNotFound
	case errors.As(err, new(*ErrConflict)):
		return http.StatusConflict
	case errors.As(err, new(*ErrRequestTooLarge)):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, new(*ErrRateLimit)):
		return http.StatusTooManyRequests
	case errors.As(err, new(*ErrServiceUnavailable)):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusRequestEntityTooLarge:
		return "REQUEST_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
