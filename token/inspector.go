// Package token inspects bearer tokens locally. The client never holds
// verification keys, so the inspector decodes claims without checking the
// signature. The backend remains the authority on validity; this only
// answers "is it worth sending".
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	MalformedTokenErr = errors.New("malformed token")
	NoExpiryClaimErr  = errors.New("token has no expiry claim")
)

// Inspector decides token expiry from the embedded exp claim. It performs
// no I/O and is deterministic given a token and its clock.
type Inspector struct {
	parser  *jwt.Parser
	nowFunc func() time.Time
	leeway  time.Duration
}

type InspectorOption func(*Inspector)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) InspectorOption {
	return func(i *Inspector) {
		i.nowFunc = now
	}
}

// WithLeeway treats tokens expiring within d as already expired, so calls
// in flight don't race the deadline.
func WithLeeway(d time.Duration) InspectorOption {
	return func(i *Inspector) {
		i.leeway = d
	}
}

func NewInspector(options ...InspectorOption) *Inspector {
	i := &Inspector{
		parser:  jwt.NewParser(),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// IsValid reports whether the token is present, decodable, and not past its
// expiry. Malformed input is an invalid token, never an error.
func (i *Inspector) IsValid(tokenStr string) bool {
	expiresAt, err := i.ExpiresAt(tokenStr)
	if err != nil {
		return false
	}
	return i.nowFunc().Add(i.leeway).Before(expiresAt)
}

// ExpiresAt returns the token's expiry claim. It fails with
// MalformedTokenErr when the token cannot be decoded and NoExpiryClaimErr
// when the claim is absent.
func (i *Inspector) ExpiresAt(tokenStr string) (time.Time, error) {
	if tokenStr == "" {
		return time.Time{}, errors.Wrap(MalformedTokenErr, "[ExpiresAt] empty token")
	}

	parsed, _, err := i.parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, errors.Wrap(MalformedTokenErr, "[ExpiresAt] parse")
	}

	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrap(MalformedTokenErr, "[ExpiresAt] exp claim")
	}
	if expiry == nil {
		return time.Time{}, errors.Wrap(NoExpiryClaimErr, "[ExpiresAt] exp claim")
	}
	return expiry.Time, nil
}
