package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/doublescoop/punto/ledger/pkg/store"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// CurrentStatus is set on state conflicts so the caller can see what
	// won the race.
	CurrentStatus string `json:"current_status,omitempty"`
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses: validation 400, unknown
// entity 404, lost races 409, everything else 500 with the detail kept in
// the logs.
func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	var (
		ve *store.ValidationError
		sc *store.StateConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(log, w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Message: ve.Error(),
		})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(log, w, http.StatusNotFound, ErrorResponse{
			Error: "not_found",
		})
	case errors.As(err, &sc):
		writeJSON(log, w, http.StatusConflict, ErrorResponse{
			Error:         "state_conflict",
			Message:       sc.Error(),
			CurrentStatus: sc.Current,
		})
	case errors.Is(err, store.ErrDuplicatePayment):
		writeJSON(log, w, http.StatusConflict, ErrorResponse{
			Error:   "duplicate_payment",
			Message: "a payment already exists for this submission",
		})
	default:
		log.Error("request failed", "error", err)
		writeJSON(log, w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}
}

// decodeJSON parses a request body into a typed struct, rejecting unknown
// fields so typos fail loudly instead of silently defaulting.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &store.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// parseUUIDField parses a UUID carried in a request body field.
func parseUUIDField(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &store.ValidationError{Field: name, Reason: fmt.Sprintf("invalid uuid %q", raw)}
	}
	return id, nil
}

// pathUUID parses a UUID URL parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &store.ValidationError{Field: name, Reason: fmt.Sprintf("invalid uuid %q", raw)}
	}
	return id, nil
}
