// Package response gives handlers a single, consistent JSON envelope for
// both success and error replies, adapted from the teacher's
// internal/http/response package.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rezkam/inference-engine/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details,omitempty"`
}

// ErrorField describes a field-specific validation error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// OK sends a 200 OK response with JSON data.
func OK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode success response", "error", err)
	}
}

// Accepted sends a 202 Accepted response.
func Accepted(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode accepted response", "error", err)
	}
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// ValidationError sends a 400 validation error with field details.
func ValidationError(w http.ResponseWriter, field, issue string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed",
			Details: []ErrorField{{Field: field, Issue: issue}},
		},
	})
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// Unauthorized sends a 401 Unauthorized error.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// Forbidden sends a 403 Forbidden error.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, "FORBIDDEN", message, http.StatusForbidden)
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// TooManyRequests sends a 429 Too Many Requests error.
func TooManyRequests(w http.ResponseWriter) {
	Error(w, "RATE_LIMITED", "rate limit exceeded", http.StatusTooManyRequests)
}

// InternalError logs err server-side and sends a generic 500 to the client,
// since the underlying cause is never safe to disclose.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "internal server error", "error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// FromDomainError maps a domain sentinel error to the matching HTTP status
// and standard error envelope.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrModelNotFound):
		BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrJobNotFound):
		NotFound(w, "job")
	case errors.Is(err, domain.ErrPoolUnknown):
		NotFound(w, "pool")
	case errors.Is(err, domain.ErrRoutingUnknown), errors.Is(err, domain.ErrRoutingNeedsIdentity):
		BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrExecutorSaturated):
		Error(w, "SATURATED", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrExecutionTimeout):
		Error(w, "TIMEOUT", err.Error(), http.StatusGatewayTimeout)
	case errors.Is(err, domain.ErrJobCancelled):
		Error(w, "CANCELLED", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrUnauthorized):
		Unauthorized(w, "invalid or missing API key")
	case errors.Is(err, domain.ErrForbidden):
		Forbidden(w, "missing required scope")
	case errors.Is(err, domain.ErrPipelineError):
		Error(w, "PIPELINE_ERROR", err.Error(), http.StatusBadGateway)
	default:
		InternalError(w, r, err)
	}
}
