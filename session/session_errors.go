package session

import "errors"

var (
	NoRefreshTokenErr = errors.New("no refresh token available")
	RefreshFailedErr  = errors.New("refresh failed")
)
