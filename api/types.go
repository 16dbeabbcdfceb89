package api

import "time"

// RoleType represents a player role returned by the backend. The set is
// closed; anything else in a response is preserved as-is but callers
// should treat it as unknown.
type RoleType string

const (
	RoleArchitect RoleType = "ARCHITECT" // Puzzle builders
	RoleBreacher  RoleType = "BREACHER"  // Puzzle solvers
	RoleAdmin     RoleType = "ADMIN"     // Platform administrators
)

// User is the full profile record served by /auth/me and /auth/profile.
type User struct {
	ID          string           `json:"id"`
	Username    string           `json:"username"`
	Email       string           `json:"email"`
	FullName    *string          `json:"fullname,omitempty"`  // Optional display name
	AvatarURL   *string          `json:"avatarUrl,omitempty"` // Optional avatar location
	Role        RoleType         `json:"role"`
	IsVerified  bool             `json:"isVerified"`
	VaultPoints int              `json:"vaultPoints"`
	TotalWins   int              `json:"totalWins"`
	WinGames    int              `json:"winGames"`
	WinRate     float64          `json:"winRate"`
	CreatedAt   time.Time        `json:"createdAt"`
	LastLogin   *time.Time       `json:"lastLogin,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

// UserPreferences holds per-user client settings. All fields are optional
// so that partial updates round-trip without clobbering unset values.
type UserPreferences struct {
	Theme                *string `json:"theme,omitempty"`
	SoundEnabled         *bool   `json:"soundEnabled,omitempty"`
	NotificationsEnabled *bool   `json:"notificationsEnabled,omitempty"`
	Language             *string `json:"language,omitempty"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
	RememberMe      bool   `json:"rememberMe,omitempty"`
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"fullName,omitempty"`
	Role     *string `json:"role,omitempty"` // Requested role; the backend may override
}

// AuthResponse is returned by register, login, and refresh. The token pair
// always arrives together; ExpiresIn is the access token lifetime in seconds.
type AuthResponse struct {
	UserID       string   `json:"userId"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Role         RoleType `json:"role"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"`
	TokenType    string   `json:"tokenType"`
}

// ProfileUpdate carries the mutable User fields for PUT /auth/profile.
// Nil fields are omitted and left untouched by the backend.
type ProfileUpdate struct {
	FullName    *string          `json:"fullname,omitempty"`
	AvatarURL   *string          `json:"avatarUrl,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

// PasswordResetRequest is the payload for POST /auth/forgot-password.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirm is the payload for POST /auth/reset-password.
type PasswordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}
