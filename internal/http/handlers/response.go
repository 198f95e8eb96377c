// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints:
// the structured error envelope and helpers for writing success and failure
// responses in a consistent shape.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - Validation failures additionally carry a per-field message map.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx responses
//     are logged with request context.
//
// Example error response:
//
//	HTTP/1.1 422 Unprocessable Entity
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "validation_failed",
//	  "message": "submission is invalid",
//	  "fields": { "link": "link must start with https://t.me/" }
//	}
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/joingroups-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"listing not found"`
	// Per-field messages, only for validation_failed
	Fields map[string]string `json:"fields,omitempty"`
}

// fail aborts the request with a structured error. 5xx answers are logged
// through the request logger and recorded on c.Errors, so the access line
// carries the message the client only sees as a code.
func fail(c *gin.Context, status int, code, msg string) {
	failFields(c, status, code, msg, nil)
}

// failFields is fail with a field map attached.
func failFields(c *gin.Context, status int, code, msg string, fields map[string]string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("detail", msg).
			Msg("api error")
		_ = c.Error(errors.New(code + ": " + msg)).SetType(gin.ErrorTypePrivate)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Fields:    fields,
	})
}

// failBind answers a JSON binding failure. A body cut off by
// http.MaxBytesReader is 413; anything else is 400 with msg.
func failBind(c *gin.Context, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
}

// Fail is the exported variant of fail() for the router's fallbacks and
// middleware.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
