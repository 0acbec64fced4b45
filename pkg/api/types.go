package api

import (
	"strings"

	"github.com/brightpath/brightpath/pkg/auth"
)

// MinPasswordLength is the shortest password accepted at registration and
// password change.
const MinPasswordLength = 6

// RegisterRequest is the body of POST /api/v1/auth/register
type RegisterRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     string       `json:"role"`
	Profile  auth.Profile `json:"profile"`
}

// LoginRequest is the body of POST /api/v1/auth/login. Role is optional; when
// present it must match the account's role.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RefreshRequest is the body of POST /api/v1/auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the body of POST /api/v1/auth/logout. An empty body clears
// every stored refresh token for the account.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateProfileRequest is the body of PUT /api/v1/auth/me. Only profile fields
// are writable here; role and permissions never change through this route.
type UpdateProfileRequest struct {
	Profile auth.Profile `json:"profile"`
}

// ChangePasswordRequest is the body of PUT /api/v1/auth/password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ProgressRequest is the body of POST /api/v1/progress
type ProgressRequest struct {
	Milestone string `json:"milestone"`
}

// TokenPair carries a freshly issued access/refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse is the data payload of register and login responses. Account
// serialization relies on the json tags to omit the password digest, lockout
// state, and stored refresh tokens.
type AuthResponse struct {
	Account *auth.Account `json:"account"`
	Tokens  *TokenPair    `json:"tokens"`
}

// validEmail performs a cheap shape check. Real deliverability is out of
// scope; uniqueness is enforced by the store.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}
