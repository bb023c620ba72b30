// Package respond writes the JSON envelope shared by every API handler.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
)

// Envelope is the body of every successful response
type Envelope struct {
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata accompanies every response
type Metadata struct {
	Timestamp string `json:"timestamp"`
}

// ErrorBody is the body of every failed response
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// JSON writes v as-is with the given status
func JSON(w http.ResponseWriter, status int, v interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Data wraps data in the standard envelope
func Data(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	JSON(w, status, Envelope{
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().Format(time.RFC3339)},
	}, log)
}

// Error maps err to a status code and writes it.
// Server errors are logged; their details are not sent to the client.
func Error(w http.ResponseWriter, err error, log zerolog.Logger) {
	status := StatusFor(err)
	body := ErrorBody{Error: err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		body.Error = "internal error"
	}

	JSON(w, status, body, log)
}

// BadRequest writes a 400 with msg
func BadRequest(w http.ResponseWriter, msg string, log zerolog.Logger) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: msg}, log)
}

// StatusFor maps domain errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrInvestmentClosed),
		errors.Is(err, domain.ErrDuplicateUser),
		errors.Is(err, domain.ErrDuplicateAsset):
		return http.StatusConflict
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
