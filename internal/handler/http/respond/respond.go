// Package respond writes JSON responses and maps domain errors to HTTP
// status codes without leaking internal details.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"news-digest/internal/domain/entity"
	"news-digest/internal/observability/logging"
	"news-digest/internal/usecase/subscription"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already sent
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Message writes a client-facing error message as is.
func Message(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, ErrorBody{Error: msg})
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var ve *entity.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, subscription.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err with the status from StatusFor. Server errors are logged
// with secrets masked and replaced by a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("internal server error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", SanitizeError(err)))
		Message(w, code, "internal server error")
		return
	}

	body := ErrorBody{Error: clientMessage(code, err)}
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		body = ErrorBody{Error: ve.Message, Field: ve.Field}
	}
	JSON(w, code, body)
}

func clientMessage(code int, err error) string {
	switch code {
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "already exists"
	case http.StatusForbidden:
		return "invalid or missing token"
	default:
		return SanitizeError(err)
	}
}
