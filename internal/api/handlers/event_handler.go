package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/ender-accounts/internal/services"
)

const maxActivityLimit = 100

// EventHandler handles HTTP requests related to graph activity.
type EventHandler struct {
	service services.ActivityProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.ActivityProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get the caller's recent follow activity.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing auth token")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}
	limit = min(limit, maxActivityLimit)

	writeJSON(w, http.StatusOK, h.service.GetRecentEvents(caller, limit))
}
