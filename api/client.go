package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// Client issues raw calls against the backend /auth API. It attaches no
// bearer credentials of its own; authorization is the transport pipeline's
// job, except for Logout which carries its token explicitly.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client. This is how the
// session coordinator installs the authorization pipeline.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client for the given base URL (e.g.
// "https://api.thevault.gg/api"). A trailing slash is trimmed.
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register creates an account. A 4xx rejection surfaces as
// InvalidCredentialsErr wrapped around the decoded APIError.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, "/auth/register", req, &resp, ""); err != nil {
		return nil, credentialError(err, "[Register] register request rejected")
	}
	return &resp, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, "/auth/login", req, &resp, ""); err != nil {
		return nil, credentialError(err, "[Login] login request rejected")
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a fresh token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	var resp AuthResponse
	if err := c.post(ctx, "/auth/refresh", body, &resp, ""); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the session server-side. The access token is attached
// here rather than by the pipeline so that callers can log out a token that
// the pipeline would no longer pick up.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/auth/logout", struct{}{}, nil, accessToken)
}

// Me fetches the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile fetches another user's public profile.
func (c *Client) Profile(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.get(ctx, "/auth/profile/"+url.PathEscape(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial update and returns the resulting record.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/auth/profile", update, &user, ""); err != nil {
		return nil, err
	}
	return &user, nil
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, req PasswordResetRequest) error {
	return c.post(ctx, "/auth/forgot-password", req, nil, "")
}

// ResetPassword completes a password reset with the emailed token.
func (c *Client) ResetPassword(ctx context.Context, req PasswordResetConfirm) error {
	return c.post(ctx, "/auth/reset-password", req, nil, "")
}

// VerifyEmail confirms an email address with the emailed token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.get(ctx, "/auth/verify?token="+url.QueryEscape(token), nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any, accessToken string) error {
	return c.do(ctx, http.MethodPost, path, body, out, accessToken)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, "")
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, accessToken string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[do] failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "[do] failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[do] %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "[do] failed to decode %s %s response", method, path)
	}
	return nil
}

// decodeError drains a non-2xx response into an APIError. An undecodable
// body still yields a useful status-only error.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(payload) > 0 {
		_ = json.Unmarshal(payload, apiErr)
	}
	return apiErr
}

// credentialError rebrands a 4xx rejection of login/register as
// InvalidCredentialsErr while keeping the decoded payload in the chain.
func credentialError(err error, context string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return errors.Wrap(fmt.Errorf("%w: %w", InvalidCredentialsErr, apiErr), context)
	}
	return err
}
