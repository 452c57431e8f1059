package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/invites"
	"fintrack/internal/rates"
	"fintrack/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP statuses. Validation problems are
// the client's fault; unknown errors stay opaque.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrNotOwner), errors.Is(err, core.ErrNotParticipant):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, rates.ErrNetwork), errors.Is(err, rates.ErrParse):
		status, msg = http.StatusBadGateway, "rate provider unavailable"
	case errors.Is(err, invites.ErrCodeExpired):
		status, msg = http.StatusGone, err.Error()
	case errors.Is(err, invites.ErrInvalidCode),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrEmptyActor),
		errors.Is(err, core.ErrNegativeTarget),
		errors.Is(err, core.ErrCurrencyLocked),
		errors.Is(err, core.ErrNotBudget),
		errors.Is(err, core.ErrNotGoal),
		errors.Is(err, core.ErrNoLeftover):
		status, msg = http.StatusBadRequest, err.Error()
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

// identity pulls the acting user from request headers. Authentication is an
// upstream concern; this service trusts the gateway-provided identity.
func identity(r *http.Request) (userID, userName string, ok bool) {
	userID = r.Header.Get("X-User-ID")
	userName = r.Header.Get("X-User-Name")
	return userID, userName, userID != ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}
