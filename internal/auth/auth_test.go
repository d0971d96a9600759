package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("secret")
	token, err := svc.IssueToken("user_1", time.Hour)
	require.NoError(t, err)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", userID)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewService("secret")

	expired, err := svc.IssueToken("user_1", -time.Minute)
	require.NoError(t, err)

	foreign, err := NewService("other").IssueToken("user_1", time.Hour)
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user_1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  foreign,
		"no subject": noSub,
		"hs512":      hs512,
		"garbage":    "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	svc := NewService("secret")
	token, err := svc.IssueToken("user_1", time.Hour)
	require.NoError(t, err)

	var seen string
	h := svc.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "user_1", seen)
}

func TestQueryToken(t *testing.T) {
	svc := NewService("secret")
	token, err := svc.IssueToken("user_1", time.Hour)
	require.NoError(t, err)

	userID, err := svc.QueryToken(httptest.NewRequest(http.MethodGet, "/ws/editor/x?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, "user_1", userID)

	_, err = svc.QueryToken(httptest.NewRequest(http.MethodGet, "/ws/editor/x", nil))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
