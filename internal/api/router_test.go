package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/isdelr/ender-accounts/internal/store"
	"github.com/isdelr/ender-accounts/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAccount struct {
	ID    uuid.UUID
	Token string
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	st := store.NewMemoryStore()
	events := services.NewEventService(nil)
	graph := services.NewGraphService(st, services.NewRelationToggle(st, events))
	users := services.NewUserService(st, bcrypt.MinCost)
	authenticator := auth.NewAuthenticator([]byte("router-test-key"), time.Hour)
	return NewRouter(users, graph, events, authenticator, websocket.NewHub(), Options{
		AllowedOrigins: []string{"http://localhost:3000"},
		AuthRateLimit:  1000,
		AuthRateBurst:  1000,
	})
}

func do(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func registerAndLogin(t *testing.T, router http.Handler, username string) testAccount {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "password": "password1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username, "password": "password1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	user := body["user"].(map[string]interface{})
	id, err := uuid.Parse(user["id"].(string))
	require.NoError(t, err)
	return testAccount{ID: id, Token: body["token"].(string)}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestAuthFlow(t *testing.T) {
	router := newTestRouter(t)
	alice := registerAndLogin(t, router, "alice")

	w := do(t, router, http.MethodGet, "/api/v1/auth/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, me, "passwordHash")

	w = do(t, router, http.MethodGet, "/api/v1/auth/verify", alice.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "password": "password1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "A!", "password": "password1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFollowFlow(t *testing.T) {
	router := newTestRouter(t)
	alice := registerAndLogin(t, router, "alice")
	bob := registerAndLogin(t, router, "bobby")

	w := do(t, router, http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["followed"])

	w = do(t, router, http.MethodGet, "/api/v1/users/"+bob.ID.String()+"/followers", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	followers := body["followers"].([]interface{})
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID.String(), followers[0].(map[string]interface{})["id"])
	assert.Empty(t, body["mutuals"])

	w = do(t, router, http.MethodGet, "/api/v1/users/"+alice.ID.String()+"/following", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["following"], 1)

	w = do(t, router, http.MethodGet, "/api/v1/users/bobby", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)
	assert.Equal(t, true, profile["followed"])
	assert.Equal(t, float64(1), profile["followers"])

	// Anonymous profile reads are allowed and never report followed.
	w = do(t, router, http.MethodGet, "/api/v1/users/bobby", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["followed"])

	w = do(t, router, http.MethodGet, "/api/v1/accounts/"+bob.ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bobby", decode(t, w)["username"])

	w = do(t, router, http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["followed"])

	w = do(t, router, http.MethodGet, "/api/v1/events?limit=1", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var activity []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activity))
	require.Len(t, activity, 1)
	assert.Equal(t, "graph.unfollow", activity[0]["type"])
}

func TestGraphErrors(t *testing.T) {
	router := newTestRouter(t)
	alice := registerAndLogin(t, router, "alice")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"follow requires auth", http.MethodPost, "/api/v1/users/" + alice.ID.String() + "/follow", "", http.StatusUnauthorized},
		{"followers require auth", http.MethodGet, "/api/v1/users/" + alice.ID.String() + "/followers", "", http.StatusUnauthorized},
		{"malformed id", http.MethodPost, "/api/v1/users/not-a-uuid/follow", alice.Token, http.StatusBadRequest},
		{"unknown target", http.MethodPost, "/api/v1/users/" + uuid.NewString() + "/follow", alice.Token, http.StatusNotFound},
		{"self follow", http.MethodPost, "/api/v1/users/" + alice.ID.String() + "/follow", alice.Token, http.StatusBadRequest},
		{"unknown username", http.MethodGet, "/api/v1/users/nobody", "", http.StatusNotFound},
		{"unknown following", http.MethodGet, "/api/v1/users/" + uuid.NewString() + "/following", alice.Token, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, true, decode(t, w)["error"])
		})
	}
}

func TestSearch(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "marta")
	registerAndLogin(t, router, "artie")

	w := do(t, router, http.MethodGet, "/api/v1/users/search?username=ART", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "artie", results[0]["username"])

	w = do(t, router, http.MethodGet, "/api/v1/users/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	st := store.NewMemoryStore()
	users := services.NewUserService(st, bcrypt.MinCost)
	events := services.NewEventService(nil)
	graph := services.NewGraphService(st, services.NewRelationToggle(st, events))
	router := NewRouter(users, graph, events, auth.NewAuthenticator([]byte("k"), time.Hour), websocket.NewHub(), Options{
		AuthRateLimit: 0.001,
		AuthRateBurst: 2,
	})

	body := map[string]string{"username": "alice", "password": "nope"}
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/api/v1/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/api/v1/auth/login", "", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, router, http.MethodPost, "/api/v1/auth/login", "", body).Code)
}
