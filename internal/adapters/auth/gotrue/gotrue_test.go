package gotrue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != userPath || r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c","role":"authenticated"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifier(t *testing.T) {
	srv := newServer(t)
	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "anon"})
	require.NoError(t, err)
	v := NewVerifier(client, VerifierConfig{ServiceKey: "svc-key"})

	claims, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.False(t, claims.IsService())

	_, err = v.Verify(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = v.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrTokenEmpty)
}

func TestVerifier_ServiceKey(t *testing.T) {
	v := NewVerifier(nil, VerifierConfig{ServiceKey: "svc-key"})

	claims, err := v.Verify(context.Background(), "svc-key")
	require.NoError(t, err)
	assert.True(t, claims.IsService())
	assert.Equal(t, ServiceUserID, claims.UserID)

	_, err = v.Verify(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestVerifier_LocalJWT(t *testing.T) {
	v := NewVerifier(nil, VerifierConfig{JWTSecret: "s3cret"})
	exp := time.Now().Add(time.Hour).Unix()

	claims, err := v.Verify(context.Background(), signed(t, "s3cret", jwt.MapClaims{
		"sub": "u9", "email": "x@y.z", "role": "authenticated", "exp": exp,
	}))
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.UserID)
	assert.Equal(t, "x@y.z", claims.Email)

	svc, err := v.Verify(context.Background(), signed(t, "s3cret", jwt.MapClaims{"role": ServiceRole, "exp": exp}))
	require.NoError(t, err)
	assert.True(t, svc.IsService())

	// Firma inválida sin cliente configurado: no hay fallback.
	_, err = v.Verify(context.Background(), signed(t, "other", jwt.MapClaims{"sub": "u9", "exp": exp}))
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = v.Verify(context.Background(), signed(t, "s3cret", jwt.MapClaims{"sub": "u9", "exp": time.Now().Add(-time.Minute).Unix()}))
	assert.Error(t, err, "expired tokens are rejected")
}

func TestVerifier_LocalFailureFallsBackToGoTrue(t *testing.T) {
	srv := newServer(t)
	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "anon"})
	require.NoError(t, err)
	v := NewVerifier(client, VerifierConfig{JWTSecret: "s3cret"})

	claims, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}
