package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/pkg/validate"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("json encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response with the given data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a JSON error response. Use for client errors (4xx).
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 error.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "unauthorized")
}

// Forbidden writes a 403 error.
func Forbidden(w http.ResponseWriter) {
	Error(w, http.StatusForbidden, "forbidden")
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// Conflict writes a 409 error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, message)
}

// TooLarge writes a 413 error.
func TooLarge(w http.ResponseWriter, message string) {
	Error(w, http.StatusRequestEntityTooLarge, message)
}

// TooManyRequests writes a 429 error.
func TooManyRequests(w http.ResponseWriter) {
	Error(w, http.StatusTooManyRequests, "too many requests")
}

// Validation writes a 400 with field-level details.
func Validation(w http.ResponseWriter, fields validate.Errors) {
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation failed",
		Code:    "validation",
		Details: fields,
	})
}

// InternalError writes a 500 error. Logs the real error but returns a
// generic message to the client.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// FromError maps a service error onto the API error taxonomy.
func FromError(w http.ResponseWriter, err error) {
	var fields validate.Errors
	if errors.As(err, &fields) {
		Validation(w, fields)
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		NotFound(w, apperr.Message(err))
	case apperr.KindForbidden:
		Forbidden(w)
	case apperr.KindConflict:
		Conflict(w, apperr.Message(err))
	case apperr.KindInvalid:
		BadRequest(w, apperr.Message(err))
	case apperr.KindUnauthorized:
		Unauthorized(w)
	default:
		InternalError(w, err)
	}
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 413 for bodies over MaxBodyBytes, or a 400 if
// parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			TooLarge(w, "request body too large")
			return false
		case errors.Is(err, io.EOF):
			BadRequest(w, "request body is required")
			return false
		}
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
