package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/thevaultgame/vault-auth-client/token"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newInspector(t *testing.T) *token.Inspector {
	t.Helper()
	return token.NewInspector(token.WithNowFunc(func() time.Time { return testNow }))
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return tokenStr
}

func TestIsValidFutureExpiry(t *testing.T) {
	tokenStr := signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": testNow.Add(time.Hour).Unix()})

	require.True(t, newInspector(t).IsValid(tokenStr))
}

func TestIsValidPastExpiry(t *testing.T) {
	tokenStr := signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": testNow.Add(-time.Hour).Unix()})

	require.False(t, newInspector(t).IsValid(tokenStr))
}

func TestIsValidMalformed(t *testing.T) {
	inspector := newInspector(t)

	require.False(t, inspector.IsValid(""))
	require.False(t, inspector.IsValid("not-a-token"))
	require.False(t, inspector.IsValid("a.b.c"))
}

func TestIsValidNoExpiryClaim(t *testing.T) {
	tokenStr := signedToken(t, jwt.MapClaims{"sub": "user-1"})

	require.False(t, newInspector(t).IsValid(tokenStr))
}

func TestExpiresAt(t *testing.T) {
	expiry := testNow.Add(30 * time.Minute).Truncate(time.Second)
	tokenStr := signedToken(t, jwt.MapClaims{"exp": expiry.Unix()})

	got, err := newInspector(t).ExpiresAt(tokenStr)
	require.NoError(t, err)
	require.True(t, got.Equal(expiry))
}

func TestExpiresAtErrors(t *testing.T) {
	inspector := newInspector(t)

	_, err := inspector.ExpiresAt("garbage")
	require.ErrorIs(t, err, token.MalformedTokenErr)

	_, err = inspector.ExpiresAt(signedToken(t, jwt.MapClaims{"sub": "user-1"}))
	require.ErrorIs(t, err, token.NoExpiryClaimErr)
}

func TestLeeway(t *testing.T) {
	// Expires in 30s; with a minute of leeway that's already too close.
	tokenStr := signedToken(t, jwt.MapClaims{"exp": testNow.Add(30 * time.Second).Unix()})

	strict := token.NewInspector(token.WithNowFunc(func() time.Time { return testNow }))
	relaxed := token.NewInspector(
		token.WithNowFunc(func() time.Time { return testNow }),
		token.WithLeeway(time.Minute),
	)

	require.True(t, strict.IsValid(tokenStr))
	require.False(t, relaxed.IsValid(tokenStr))
}
