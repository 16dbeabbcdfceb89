package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/thevaultgame/vault-auth-client/credentials"
	"github.com/thevaultgame/vault-auth-client/guard"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func storeWithToken(t *testing.T, accessToken string) credentials.Store {
	t.Helper()

	store := credentials.NewMemoryStore()
	require.NoError(t, store.Save(credentials.Session{
		AccessToken:  accessToken,
		RefreshToken: "refresh-1",
		Username:     "bob",
	}))
	return store
}

func TestAllowsValidToken(t *testing.T) {
	store := storeWithToken(t, signedToken(t, time.Now().Add(time.Hour)))

	decision := guard.New(store).CanEnter()

	require.True(t, decision.Allowed)
	require.Empty(t, decision.RedirectTo)

	saved, err := store.Load()
	require.NoError(t, err)
	require.False(t, saved.IsZero(), "an allowed entry must not touch stored credentials")
}

func TestDeniesExpiredTokenAndClearsStore(t *testing.T) {
	store := storeWithToken(t, signedToken(t, time.Now().Add(-time.Hour)))

	decision := guard.New(store).CanEnter()

	require.False(t, decision.Allowed)
	require.Equal(t, "/auth/login", decision.RedirectTo)

	saved, err := store.Load()
	require.NoError(t, err)
	require.True(t, saved.IsZero(), "a denial must sweep out the stale session")
}

func TestDeniesMissingToken(t *testing.T) {
	store := credentials.NewMemoryStore()
	g := guard.New(store)

	// Repeated checks against an empty store stay denials, not errors.
	for i := 0; i < 2; i++ {
		decision := g.CanEnter()
		require.False(t, decision.Allowed)
		require.Equal(t, "/auth/login", decision.RedirectTo)
	}
}

func TestDeniesMalformedToken(t *testing.T) {
	store := storeWithToken(t, "not-a-jwt")

	decision := guard.New(store).CanEnter()

	require.False(t, decision.Allowed)
}

func TestCustomLoginPath(t *testing.T) {
	store := credentials.NewMemoryStore()

	decision := guard.New(store, guard.WithLoginPath("/signin")).CanEnter()

	require.False(t, decision.Allowed)
	require.Equal(t, "/signin", decision.RedirectTo)
}

func TestMiddlewareRedirectsDeniedRequests(t *testing.T) {
	g := guard.New(credentials.NewMemoryStore())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for a denied request")
	})

	rec := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vaults", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/login", rec.Header().Get("Location"))
}

func TestMiddlewarePassesAllowedRequests(t *testing.T) {
	store := storeWithToken(t, signedToken(t, time.Now().Add(time.Hour)))
	g := guard.New(store)

	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vaults", nil))

	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}
