package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/apperrors"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func TestIssueAndVerify(t *testing.T) {
	a := NewAuthenticator(testKey, time.Hour)
	user := models.User{ID: uuid.New(), Username: "alice"}

	token, expiresAt, err := a.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	id, err := claims.CallerID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestVerifyRejects(t *testing.T) {
	a := NewAuthenticator(testKey, time.Hour)
	user := models.User{ID: uuid.New(), Username: "alice"}

	otherKey, _, err := NewAuthenticator([]byte("other"), time.Hour).Issue(user)
	require.NoError(t, err)
	expired, _, err := NewAuthenticator(testKey, -time.Minute).Issue(user)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: user.ID.String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "not-a-uuid",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(testKey)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":         "",
		"garbage":       "not.a.token",
		"wrong key":     otherKey,
		"expired":       expired,
		"alg none":      none,
		"malformed sub": badID,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(token)
			assert.True(t, apperrors.Is(err, apperrors.KindUnauthenticated), "got %v", err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator(testKey, time.Hour)
	user := models.User{ID: uuid.New(), Username: "alice"}
	token, _, err := a.Issue(user)
	require.NoError(t, err)

	var seen *Claims
	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("bearer header", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, user.ID.String(), seen.UserID)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "missing auth token")
	})
}

func TestOptionalMiddleware(t *testing.T) {
	a := NewAuthenticator(testKey, time.Hour)

	var found bool
	handler := a.OptionalMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, found)
}
