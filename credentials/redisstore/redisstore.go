// Package redisstore is a credentials.Store backed by a Redis hash, for
// deployments where several processes share one logical session (e.g. the
// workers of a gateway). All five fields live in a single hash and are
// written and deleted together.
package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/thevaultgame/vault-auth-client/credentials"
)

const defaultOpTimeout = 3 * time.Second

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldUserID       = "user_id"
	fieldUsername     = "username"
	fieldRole         = "user_role"
)

var _ credentials.Store = (*Store)(nil)

type Store struct {
	rdb       redis.UniversalClient
	key       string
	opTimeout time.Duration
}

type Option func(*Store)

// WithKey overrides the hash key, e.g. to namespace per account.
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

func WithOpTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.opTimeout = timeout
	}
}

func New(rdb redis.UniversalClient, options ...Option) *Store {
	s := &Store{
		rdb:       rdb,
		key:       "vault:auth:session",
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Save(session credentials.Session) error {
	ctx, cancel := s.opContext()
	defer cancel()

	fields := map[string]any{
		fieldAccessToken:  session.AccessToken,
		fieldRefreshToken: session.RefreshToken,
		fieldUserID:       session.UserID,
		fieldUsername:     session.Username,
		fieldRole:         session.Role,
	}

	// Replace the hash wholesale so stale fields never outlive a save.
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key)
	pipe.HSet(ctx, s.key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[Save] failed to write session hash")
	}
	return nil
}

func (s *Store) Load() (credentials.Session, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return credentials.Session{}, errors.Wrap(err, "[Load] failed to read session hash")
	}

	return credentials.Session{
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
		UserID:       fields[fieldUserID],
		Username:     fields[fieldUsername],
		Role:         fields[fieldRole],
	}, nil
}

func (s *Store) Clear() error {
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "[Clear] failed to delete session hash")
	}
	return nil
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opTimeout)
}
