package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for account management.
type UserHandler struct {
	service  services.UserServiceProvider
	auth     *auth.Authenticator
	isSecure bool
}

// NewUserHandler creates a new UserHandler. secureCookies sets the Secure flag
// on the session cookie.
func NewUserHandler(service services.UserServiceProvider, authenticator *auth.Authenticator, secureCookies bool) *UserHandler {
	return &UserHandler{service: service, auth: authenticator, isSecure: secureCookies}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), payload.Username, payload.DisplayName, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed to register user")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication and token issuance.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.Authenticate(r.Context(), payload.Username, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed authentication attempt")
		writeError(w, err)
		return
	}

	token, expiresAt, err := h.auth.Issue(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to generate JWT")
		writeMessage(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.isSecure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresIn": expiresAt.Unix(),
		"user":      user,
	})
}

// Verify confirms the presented token is valid.
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing auth token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    http.StatusOK,
		"message":   "token verified",
		"userId":    id,
		"checkedAt": time.Now().UTC(),
	})
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(r)
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		writeMessage(w, http.StatusUnauthorized, "missing auth token")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("user_id", id.String()).Msg("User from token not found")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Search handles username substring search.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Search(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		if isServerError(err) {
			log.Error().Err(err).Msg("Failed to search users")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
