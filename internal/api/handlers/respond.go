package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/apperrors"
	"github.com/isdelr/ender-accounts/internal/auth"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   bool   `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: true, Status: status, Message: message})
}

// writeError maps an application error to its status. Store failures and
// partial inconsistencies get a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(apperrors.KindOf(err))
	message := "internal server error"
	var appErr *apperrors.Error
	if status < http.StatusInternalServerError && errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeMessage(w, status, message)
}

func isServerError(err error) bool {
	return statusFor(apperrors.KindOf(err)) >= http.StatusInternalServerError
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// parseID validates a path identity.
func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid user id")
	}
	return id, nil
}

// callerID returns the authenticated caller, if the request carries one.
func callerID(r *http.Request) (uuid.UUID, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := claims.CallerID()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
