package authz_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/authz"
)

func signToken(t *testing.T, secret []byte, subject, scope string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestAuthenticateValidToken(t *testing.T) {
	secret := []byte("test-secret")
	v := authz.NewVerifier(secret)
	token := signToken(t, secret, "alice", authz.ScopeOverrideTier, time.Hour)

	principal, err := v.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, "alice", principal.Subject)
	require.True(t, principal.HasScope(authz.ScopeOverrideTier))
	require.False(t, principal.HasScope(authz.ScopeEmergencyMode))
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	v := authz.NewVerifier([]byte("test-secret"))
	_, err := v.Authenticate("")
	require.ErrorIs(t, err, authz.ErrMissingToken)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	v := authz.NewVerifier(secret)
	token := signToken(t, secret, "alice", authz.ScopeOverrideTier, -time.Hour)

	_, err := v.Authenticate(token)
	require.ErrorIs(t, err, authz.ErrInvalidToken)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	v := authz.NewVerifier([]byte("test-secret"))
	token := signToken(t, []byte("other-secret"), "alice", authz.ScopeOverrideTier, time.Hour)

	_, err := v.Authenticate(token)
	require.ErrorIs(t, err, authz.ErrInvalidToken)
}

func TestFromRequestRequiresBearerPrefix(t *testing.T) {
	secret := []byte("test-secret")
	v := authz.NewVerifier(secret)
	token := signToken(t, secret, "alice", authz.ScopeOverrideTier, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/admin/override", nil)
	req.Header.Set(authz.HeaderAuthorization, token)
	_, err := v.FromRequest(req)
	require.ErrorIs(t, err, authz.ErrInvalidToken)

	req.Header.Set(authz.HeaderAuthorization, "Bearer "+token)
	principal, err := v.FromRequest(req)
	require.NoError(t, err)
	require.Equal(t, "alice", principal.Subject)
}

func TestRequireScopeRejectsMissingScope(t *testing.T) {
	secret := []byte("test-secret")
	v := authz.NewVerifier(secret)
	token := signToken(t, secret, "alice", authz.ScopeOverrideTier, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/admin/emergency", nil)
	req.Header.Set(authz.HeaderAuthorization, "Bearer "+token)

	_, err := v.RequireScope(req, authz.ScopeEmergencyMode)
	require.ErrorIs(t, err, authz.ErrInsufficientScope)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := authz.WithPrincipal(context.Background(), authz.Principal{Subject: "bob"})
	principal, ok := authz.FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "bob", principal.Subject)
}
