package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/rs/zerolog/log"
)

// GraphHandler handles HTTP requests for profiles and the follow graph.
type GraphHandler struct {
	service services.GraphServiceProvider
}

// NewGraphHandler creates a new GraphHandler.
func NewGraphHandler(service services.GraphServiceProvider) *GraphHandler {
	return &GraphHandler{service: service}
}

// Profile handles retrieving a user by username. Authentication is optional;
// anonymous callers always see followed=false.
func (h *GraphHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	profile, err := h.service.GetProfile(r.Context(), username, optionalCaller(r))
	if err != nil {
		h.logFailure(err, "Failed to get profile", "username", username)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ProfileByID handles retrieving a user by identity.
func (h *GraphHandler) ProfileByID(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	profile, err := h.service.GetProfileByID(r.Context(), targetID, optionalCaller(r))
	if err != nil {
		h.logFailure(err, "Failed to get profile", "user_id", targetID.String())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ToggleFollow follows the target user, or unfollows when already following.
func (h *GraphHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	caller, targetID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}
	followed, err := h.service.ToggleFollow(r.Context(), caller, targetID)
	if err != nil {
		h.logFailure(err, "Failed to toggle follow", "target_id", targetID.String())
		writeError(w, err)
		return
	}

	message := "user unfollowed"
	if followed {
		message = "user followed"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"followed": followed,
		"message":  message,
	})
}

// Following lists whom the target follows, with the caller's mutuals.
func (h *GraphHandler) Following(w http.ResponseWriter, r *http.Request) {
	caller, targetID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}
	list, err := h.service.GetFollowing(r.Context(), targetID, caller)
	if err != nil {
		h.logFailure(err, "Failed to list following", "target_id", targetID.String())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"following": list.Users,
		"mutuals":   list.Mutuals,
	})
}

// Followers lists who follows the target, with the caller's mutuals.
func (h *GraphHandler) Followers(w http.ResponseWriter, r *http.Request) {
	caller, targetID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}
	list, err := h.service.GetFollowers(r.Context(), targetID, caller)
	if err != nil {
		h.logFailure(err, "Failed to list followers", "target_id", targetID.String())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"followers": list.Users,
		"mutuals":   list.Mutuals,
	})
}

func (h *GraphHandler) callerAndTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	caller, ok := callerID(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing auth token")
		return uuid.Nil, uuid.Nil, false
	}
	targetID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return caller, targetID, true
}

func (h *GraphHandler) logFailure(err error, msg, key, value string) {
	if isServerError(err) {
		log.Error().Err(err).Str(key, value).Msg(msg)
		return
	}
	log.Debug().Err(err).Str(key, value).Msg(msg)
}

func optionalCaller(r *http.Request) *uuid.UUID {
	if id, ok := callerID(r); ok {
		return &id
	}
	return nil
}
