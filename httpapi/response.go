package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flashapp/flashauth"
)

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Anything unrecognized collapses to a generic 500 so internal detail never
// reaches the client.
func writeEngineError(w http.ResponseWriter, err error) {
	if unverified, ok := flashauth.AsUnverified(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Status:  "error",
			Message: unverified.Error(),
			Reason:  unverified.Reason(),
		})
		return
	}

	switch {
	case errors.Is(err, flashauth.ErrInvalidCredentials),
		errors.Is(err, flashauth.ErrUnauthenticated),
		errors.Is(err, flashauth.ErrRefreshInvalid),
		errors.Is(err, flashauth.ErrReplayDetected),
		errors.Is(err, flashauth.ErrAccountSuspended):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, flashauth.ErrEmailTaken),
		errors.Is(err, flashauth.ErrUsernameTaken),
		errors.Is(err, flashauth.ErrConflict),
		errors.Is(err, flashauth.ErrEmailAlreadyVerified):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, flashauth.ErrTermsNotAccepted),
		errors.Is(err, flashauth.ErrVerificationInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, flashauth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
