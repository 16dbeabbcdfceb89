package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thevaultgame/vault-auth-client/api"
)

func TestLoginDecodesAuthResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "bob", req.UsernameOrEmail)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.AuthResponse{
			UserID:      "user-1",
			Username:    "bob",
			AccessToken: "access-1",
			ExpiresIn:   3600,
			TokenType:   "Bearer",
		})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	resp, err := client.Login(context.Background(), api.LoginRequest{UsernameOrEmail: "bob", Password: "Secret123!"})
	require.NoError(t, err)
	require.Equal(t, "access-1", resp.AccessToken)
	require.Equal(t, "bob", resp.Username)
}

func TestLoginRejectionIsInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid username or password"}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	_, err := client.Login(context.Background(), api.LoginRequest{UsernameOrEmail: "bob", Password: "wrong"})
	require.ErrorIs(t, err, api.InvalidCredentialsErr)
	require.Contains(t, err.Error(), "Invalid username or password")
}

func TestRegisterValidationPayloadSurvives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"validationErrors":{"password":"must be at least 8 characters"}}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	_, err := client.Register(context.Background(), api.RegisterRequest{Email: "bob@thevault.gg", Username: "bob", Password: "short"})
	require.ErrorIs(t, err, api.InvalidCredentialsErr)

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "must be at least 8 characters", apiErr.ValidationErrors["password"])
}

func TestServerErrorMapsToRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	_, err := client.Me(context.Background())
	require.ErrorIs(t, err, api.RequestFailedErr)

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestUnauthorizedSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	_, err := client.Me(context.Background())
	require.ErrorIs(t, err, api.UnauthorizedErr)
}

func TestRefreshSendsStoredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body["refreshToken"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.AuthResponse{AccessToken: "access-2", RefreshToken: "refresh-2"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	resp, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", resp.AccessToken)
}

func TestLogoutCarriesExplicitBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	require.NoError(t, client.Logout(context.Background(), "access-1"))
	require.Equal(t, "Bearer access-1", gotAuth)
}

func TestProfileEscapesUserID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.User{ID: "user 1"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)

	_, err := client.Profile(context.Background(), "user 1")
	require.NoError(t, err)
	require.Equal(t, "/auth/profile/user%201", gotPath)
}

func TestBaseURLTrimsTrailingSlash(t *testing.T) {
	client := api.NewClient("http://localhost:8080/api/")
	require.Equal(t, "http://localhost:8080/api", client.BaseURL())
}
