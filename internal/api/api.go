// Package api provides common HTTP API utilities: JSON envelopes and the
// mapping from domain errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eventinvite/eventinvite-go/internal/invitations"
	"github.com/eventinvite/eventinvite-go/internal/store"
	"github.com/eventinvite/eventinvite-go/internal/validate"
)

// Deterministic reason codes for stable error classification.
const (
	ReasonInvalidJSON     = "invalid_json"
	ReasonValidation      = "validation_failed"
	ReasonNotFound        = "not_found"
	ReasonConflict        = "conflict"
	ReasonExpired         = "expired"
	ReasonDispatchFailed  = "dispatch_failed"
	ReasonTokenExhausted  = "token_generation_failed"
	ReasonInternalError   = "internal_error"
	ReasonUnauthenticated = "unauthenticated"
	ReasonUnauthorized    = "unauthorized"
)

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error       string                `json:"error"`
	Description string                `json:"description"`
	Fields      []validate.FieldError `json:"fields,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Description: message})
}

// WriteDomainError maps a domain error to its HTTP representation.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:       ReasonValidation,
			Description: verr.Error(),
			Fields:      verr.Fields,
		})
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, ReasonNotFound, err.Error())
	case errors.Is(err, invitations.ErrDuplicate):
		WriteError(w, http.StatusConflict, ReasonConflict, err.Error())
	case errors.Is(err, invitations.ErrExpired):
		WriteError(w, http.StatusGone, ReasonExpired, "invitation is no longer valid")
	case errors.Is(err, invitations.ErrDispatch):
		WriteError(w, http.StatusBadGateway, ReasonDispatchFailed, "failed to send notification")
	case errors.Is(err, invitations.ErrTokenExhausted):
		WriteError(w, http.StatusInternalServerError, ReasonTokenExhausted, "failed to generate token")
	default:
		// Do not leak internals on unexpected errors.
		WriteError(w, http.StatusInternalServerError, ReasonInternalError, "internal error")
	}
}
