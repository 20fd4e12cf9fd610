package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/commonshare/flow-backend/internal/models"
)

type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details any) {
	WriteJSON(w, status, APIError{Error: msg, Code: code, Details: details})
}

// DecodeStrict decodes a JSON body rejecting unknown fields, so a
// payload carrying unexpected keys fails loudly instead of passing
// through.
func DecodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// WriteDomainError maps the engine's error taxonomy onto HTTP codes.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		WriteError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
	case errors.Is(err, models.ErrReasonRequired):
		WriteError(w, http.StatusBadRequest, "reason_required", err.Error(), nil)
	case errors.Is(err, models.ErrUnknownPool):
		WriteError(w, http.StatusBadRequest, "unknown_pool", err.Error(), nil)
	case errors.Is(err, models.ErrSelfTransfer):
		WriteError(w, http.StatusUnprocessableEntity, "self_transfer", err.Error(), nil)
	case errors.Is(err, models.ErrInsufficientFunds):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error(), nil)
	case errors.Is(err, models.ErrInsufficientPoolBalance):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_pool_balance", err.Error(), nil)
	case errors.Is(err, models.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error(), nil)
	case errors.Is(err, models.ErrRequestNotFound):
		WriteError(w, http.StatusNotFound, "request_not_found", err.Error(), nil)
	case errors.Is(err, models.ErrDuplicateVote):
		WriteError(w, http.StatusConflict, "duplicate_vote", err.Error(), nil)
	case errors.Is(err, models.ErrRequestClosed):
		WriteError(w, http.StatusConflict, "request_closed", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
