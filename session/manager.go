// Package session owns the authenticated-user state: it issues login,
// register, refresh, and logout calls against the backend, persists the
// resulting session, and serializes concurrent refresh attempts into a
// single in-flight operation whose outcome every waiter shares.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/thevaultgame/vault-auth-client/api"
	"github.com/thevaultgame/vault-auth-client/credentials"
	"github.com/thevaultgame/vault-auth-client/token"
	"github.com/thevaultgame/vault-auth-client/transport"
)

// refreshCall is the pending-operation handle for a single-flight refresh.
// The first caller creates it and starts the upstream call; later callers
// attach to done and read the settled outcome. It is never reused.
type refreshCall struct {
	done chan struct{}
	resp *api.AuthResponse
	err  error
}

// Manager coordinates the session lifecycle. It holds two API clients: the
// raw one for the auth endpoints themselves, and one routed through the
// authorization pipeline for ordinary authenticated calls.
type Manager struct {
	store     credentials.Store
	client    *api.Client // No pipeline: login/refresh must not be auto-authorized
	authed    *api.Client // Through the pipeline: /auth/me, profiles
	inspector *token.Inspector
	log       zerolog.Logger
	nowFunc   func() time.Time

	baseTransport http.RoundTripper
	httpTimeout   time.Duration
	preload       bool

	mu      sync.Mutex
	pending *refreshCall // Non-nil while a refresh is in flight
	state   State

	users *userCache
}

type ManagerOption func(*Manager)

func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithNowFunc sets the clock used for local token-validity decisions
// (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
		m.inspector = token.NewInspector(token.WithNowFunc(now))
	}
}

// WithBaseTransport sets the transport the authorization pipeline wraps
// for the manager's own authenticated calls.
func WithBaseTransport(base http.RoundTripper) ManagerOption {
	return func(m *Manager) {
		m.baseTransport = base
	}
}

func WithHTTPTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.httpTimeout = timeout
	}
}

// WithUserPreload makes the constructor behave like an app start: when the
// stored access token is still valid, the current-user cache is populated
// asynchronously, and the credentials are cleared if the backend rejects
// the token.
func WithUserPreload() ManagerOption {
	return func(m *Manager) {
		m.preload = true
	}
}

// NewManager wires a Manager from a credential store and a raw API client.
func NewManager(store credentials.Store, client *api.Client, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if client == nil {
		return nil, errors.New("[NewManager] client is required")
	}

	m := &Manager{
		store:       store,
		client:      client,
		inspector:   token.NewInspector(),
		log:         zerolog.Nop(),
		nowFunc:     time.Now,
		httpTimeout: 30 * time.Second,
		state:       StateUnauthenticated,
		users:       newUserCache(),
	}
	for _, opt := range options {
		opt(m)
	}

	pipeline, err := m.Pipeline(m.baseTransport)
	if err != nil {
		return nil, errors.Wrap(err, "[NewManager] failed to build pipeline")
	}
	m.authed = api.NewClient(client.BaseURL(),
		api.WithHTTPClient(&http.Client{Transport: pipeline, Timeout: m.httpTimeout}),
		api.WithLogger(m.log),
	)

	if session, err := store.Load(); err == nil && m.inspector.IsValid(session.AccessToken) {
		m.state = StateAuthenticated
		if m.preload {
			go m.preloadUser()
		}
	}

	return m, nil
}

// Pipeline returns an authorization pipeline around base that this manager
// backs. Hand it to any http.Client whose requests should carry the
// session's bearer token.
func (m *Manager) Pipeline(base http.RoundTripper) (http.RoundTripper, error) {
	opts := []transport.Option{transport.WithLogger(m.log)}
	if base != nil {
		opts = append(opts, transport.WithBase(base))
	}
	return transport.New(m.store, m, opts...)
}

// State reports the session lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Register creates an account and establishes the returned session. Backend
// rejections propagate unchanged; nothing is retried.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	resp, err := m.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := m.establish(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Login authenticates and establishes the returned session.
func (m *Manager) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	resp, err := m.client.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := m.establish(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout tears the session down. The backend call is best-effort: local
// state is cleared whatever it returns, and Logout never fails observably.
func (m *Manager) Logout(ctx context.Context) error {
	session, err := m.store.Load()
	if err != nil {
		m.log.Debug().Err(err).Msg("credential read failed during logout")
	}
	if session.AccessToken != "" {
		if err := m.client.Logout(ctx, session.AccessToken); err != nil {
			m.log.Debug().Err(err).Msg("backend logout failed, clearing local state anyway")
		}
	}
	m.teardown()
	return nil
}

// Refresh exchanges the stored refresh token for a new session. Concurrent
// callers share one upstream call: the first caller in becomes the owner,
// everyone arriving while it is in flight attaches to the same pending
// handle and receives the literal response (or error) of that single call.
func (m *Manager) Refresh(ctx context.Context) (*api.AuthResponse, error) {
	m.mu.Lock()
	if call := m.pending; call != nil {
		m.mu.Unlock()
		return m.await(ctx, call)
	}

	session, err := m.store.Load()
	if err != nil {
		m.mu.Unlock()
		return nil, errors.Wrap(err, "[Refresh] credential read")
	}
	if session.RefreshToken == "" {
		m.mu.Unlock()
		return nil, NoRefreshTokenErr
	}

	call := &refreshCall{done: make(chan struct{})}
	m.pending = call
	m.state = StateRefreshing
	m.mu.Unlock()

	// The refresh is shared by every waiter, so it must not die with the
	// owner's context.
	call.resp, call.err = m.doRefresh(context.WithoutCancel(ctx), session.RefreshToken)

	m.mu.Lock()
	m.pending = nil
	if call.err != nil {
		m.state = StateUnauthenticated
	} else {
		m.state = StateAuthenticated
	}
	m.mu.Unlock()
	close(call.done)

	return call.resp, call.err
}

// await attaches a caller to an in-flight refresh. A caller whose context
// expires stops listening, but the shared refresh keeps running.
func (m *Manager) await(ctx context.Context, call *refreshCall) (*api.AuthResponse, error) {
	select {
	case <-call.done:
		return call.resp, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error) {
	resp, err := m.client.Refresh(ctx, refreshToken)
	if err != nil {
		// Terminal: a rejected refresh forces re-login.
		m.teardown()
		if errors.Is(err, api.UnauthorizedErr) || errors.Is(err, api.RequestFailedErr) {
			return nil, errors.Wrap(RefreshFailedErr, err.Error())
		}
		return nil, err
	}
	if err := m.establish(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FetchCurrentUser loads /auth/me through the pipeline and refreshes the
// current-user cache.
func (m *Manager) FetchCurrentUser(ctx context.Context) (*api.User, error) {
	user, err := m.authed.Me(ctx)
	if err != nil {
		return nil, err
	}
	m.users.publish(user)
	return user, nil
}

// FetchProfile loads another user's profile. The cache is untouched.
func (m *Manager) FetchProfile(ctx context.Context, userID string) (*api.User, error) {
	return m.authed.Profile(ctx, userID)
}

// UpdateProfile applies a partial profile update and refreshes the cache
// with the record the backend returns.
func (m *Manager) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*api.User, error) {
	user, err := m.authed.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}
	m.users.publish(user)
	return user, nil
}

// ForgotPassword requests a reset email. Unauthenticated passthrough.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	return m.client.ForgotPassword(ctx, api.PasswordResetRequest{Email: email})
}

// ResetPassword completes a password reset.
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return m.client.ResetPassword(ctx, api.PasswordResetConfirm{Token: resetToken, NewPassword: newPassword})
}

// VerifyEmail confirms an email address.
func (m *Manager) VerifyEmail(ctx context.Context, verifyToken string) error {
	return m.client.VerifyEmail(ctx, verifyToken)
}

// CurrentUser returns the cached user record, nil when logged out or not
// yet fetched.
func (m *Manager) CurrentUser() *api.User {
	return m.users.current()
}

// Subscribe returns a latest-value stream of the current user. The cached
// value (possibly nil) is replayed immediately on subscribe; slow consumers
// only ever see the most recent value. The returned cancel detaches the
// subscriber.
func (m *Manager) Subscribe() (<-chan *api.User, func()) {
	return m.users.subscribe()
}

// establish persists the session from an auth response as one atomic set
// and asynchronously populates the user cache, mirroring what a login,
// register, or refresh success has in common.
func (m *Manager) establish(resp *api.AuthResponse) error {
	session := credentials.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.UserID,
		Username:     resp.Username,
		Role:         string(resp.Role),
	}
	if err := m.store.Save(session); err != nil {
		return errors.Wrap(err, "[establish] failed to persist session")
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.httpTimeout)
		defer cancel()
		if _, err := m.FetchCurrentUser(ctx); err != nil {
			m.log.Debug().Err(err).Msg("failed to load user after auth")
		}
	}()
	return nil
}

// teardown clears credentials and the user cache. Used by logout and by
// terminal refresh failures.
func (m *Manager) teardown() {
	if err := m.store.Clear(); err != nil {
		m.log.Debug().Err(err).Msg("credential clear failed")
	}
	m.users.publish(nil)
	m.mu.Lock()
	m.state = StateUnauthenticated
	m.mu.Unlock()
}

func (m *Manager) preloadUser() {
	ctx, cancel := context.WithTimeout(context.Background(), m.httpTimeout)
	defer cancel()
	if _, err := m.FetchCurrentUser(ctx); err != nil {
		m.log.Debug().Err(err).Msg("stored token rejected on startup, clearing credentials")
		m.teardown()
	}
}
