// Package transport is the request-authorization pipeline: an
// http.RoundTripper that attaches the stored bearer token to outgoing
// calls and, on an authorization failure, refreshes the session exactly
// once and replays the failed call. Install it on any http.Client to make
// its requests authenticated.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/thevaultgame/vault-auth-client/api"
	"github.com/thevaultgame/vault-auth-client/credentials"
)

const (
	refreshPath = "/auth/refresh"
	loginPath   = "/auth/login"
)

// Refresher is the slice of the session coordinator the pipeline depends
// on. The Refresh implementation must serialize concurrent callers into a
// single upstream call.
type Refresher interface {
	Refresh(ctx context.Context) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
}

var _ http.RoundTripper = (*RoundTripper)(nil)

// RoundTripper wraps a base transport with bearer attachment and the
// refresh-and-replay behavior. Safe for concurrent use.
type RoundTripper struct {
	base      http.RoundTripper
	store     credentials.Store
	refresher Refresher
	log       zerolog.Logger
}

type Option func(*RoundTripper)

// WithBase sets the wrapped transport; defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(rt *RoundTripper) {
		rt.base = base
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(rt *RoundTripper) {
		rt.log = log
	}
}

func New(store credentials.Store, refresher Refresher, options ...Option) (*RoundTripper, error) {
	if store == nil {
		return nil, errors.New("[transport.New] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[transport.New] refresher is required")
	}

	rt := &RoundTripper{
		base:      http.DefaultTransport,
		store:     store,
		refresher: refresher,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(rt)
	}
	return rt, nil
}

// RoundTrip implements http.RoundTripper. On a 401 for anything but a login
// attempt it refreshes once and resends; if the refresh fails the session
// is torn down and the original 401 response is returned to the caller.
// All other outcomes pass through unchanged.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	session, err := rt.store.Load()
	if err != nil {
		rt.log.Debug().Err(err).Msg("credential read failed, sending unauthenticated")
		session = credentials.Session{}
	}

	outgoing := req
	// The refresh endpoint must never be auto-authorized: a stale bearer on
	// it would 401 and recurse into another refresh.
	if session.AccessToken != "" && !strings.Contains(req.URL.Path, refreshPath) {
		outgoing = cloneWithToken(req, session.AccessToken)
	}

	resp, err := rt.base.RoundTrip(outgoing)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || strings.Contains(req.URL.Path, loginPath) {
		return resp, nil
	}

	// A 401 on a request we cannot rebuild is not retryable; hand it back.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	auth, refreshErr := rt.refresher.Refresh(req.Context())
	if refreshErr != nil {
		rt.log.Debug().Err(refreshErr).Str("path", req.URL.Path).Msg("refresh failed, logging out")
		_ = rt.refresher.Logout(req.Context())
		// The caller gets the original authorization failure, not the
		// refresh error.
		return resp, nil
	}

	drain(resp)

	retry := cloneWithToken(req, auth.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[RoundTrip] failed to rebuild request body")
		}
		retry.Body = body
	}

	rt.log.Debug().Str("path", req.URL.Path).Msg("replaying request with refreshed token")
	return rt.base.RoundTrip(retry)
}

func cloneWithToken(req *http.Request, accessToken string) *http.Request {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+accessToken)
	return clone
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}
