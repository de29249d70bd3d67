// Package httpjson holds the JSON response helpers shared by the HTTP
// handlers, including the mapping from domain errors to status codes.
package httpjson

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type errorBody struct {
	Error     string              `json:"error"`
	Fields    []domain.FieldError `json:"fields,omitempty"`
	Shortages []domain.Shortage   `json:"shortages,omitempty"`
}

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, errorBody{Error: message})
}

// Status maps a service error to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// WriteDomainError renders err with its mapped status. Unexpected errors are
// logged and hidden behind a generic message.
func WriteDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		WriteError(w, logger, status, "internal server error")
		return
	}

	body := errorBody{Error: err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}

	var serr *domain.InsufficientStockError
	if errors.As(err, &serr) {
		body.Shortages = serr.Shortages
	}

	WriteJSON(w, logger, status, body)
}

// Decode reads a JSON request body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", "invalid request body")
	}
	return nil
}
