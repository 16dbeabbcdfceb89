// Package credentials persists the current session's tokens and identity
// claims. Stores hold five entries (access token, refresh token, user id,
// username, role) written together as a set and cleared together. A store
// performs no validation and no network access.
package credentials

// Session is the persisted shape of an authenticated session. The access
// and refresh tokens travel together: Save writes all fields atomically and
// Clear removes them all.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Role         string `json:"user_role"`
}

// IsZero reports whether no session has been saved (or it was cleared).
func (s Session) IsZero() bool {
	return s == Session{}
}

// Store is durable key/value persistence for one Session. Load on an empty
// store returns a zero Session and no error; absence is not a failure.
type Store interface {
	Save(session Session) error
	Load() (Session, error)
	Clear() error
}
