package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role represents an account's platform role
type Role string

const (
	RoleStudent    Role = "student"    // Enrolls in courses, tracks progress
	RoleInstructor Role = "instructor" // Creates and manages courses
	RoleAdmin      Role = "admin"      // Full platform access
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// Permission represents a fine-grained capability
type Permission string

const (
	PermissionCourseRead    Permission = "course:read"
	PermissionCourseWrite   Permission = "course:write"
	PermissionResourceRead  Permission = "resource:read"
	PermissionResourceWrite Permission = "resource:write"
	PermissionProgressWrite Permission = "progress:write"
	PermissionRewardRead    Permission = "reward:read"
	PermissionAccountManage Permission = "account:manage"
	PermissionAll           Permission = "admin:all" // Blanket permission
)

// DerivePermissions maps a role to its default permission set.
// Called at account creation and on explicit role change; never from a
// persistence hook.
func DerivePermissions(role Role) []Permission {
	switch role {
	case RoleStudent:
		return []Permission{
			PermissionCourseRead,
			PermissionResourceRead,
			PermissionProgressWrite,
			PermissionRewardRead,
		}
	case RoleInstructor:
		return []Permission{
			PermissionCourseRead,
			PermissionCourseWrite,
			PermissionResourceRead,
			PermissionResourceWrite,
			PermissionRewardRead,
		}
	case RoleAdmin:
		return []Permission{PermissionAll}
	}
	return nil
}

// RefreshTokenRecord is a stored refresh token entry. Only the SHA-256 digest
// of the token is kept; the raw token is returned to the client once.
type RefreshTokenRecord struct {
	Digest   string    `json:"-"`
	IssuedAt time.Time `json:"issued_at"`
}

// Profile holds role-specific profile fields, orthogonal to the auth core
type Profile struct {
	FullName        string `json:"full_name,omitempty"`
	Institution     string `json:"institution,omitempty"`      // students
	Department      string `json:"department,omitempty"`       // instructors
	ExperienceYears int    `json:"experience_years,omitempty"` // instructors
	Specialization  string `json:"specialization,omitempty"`   // instructors
}

// Account represents a platform account
type Account struct {
	ID             string       `json:"id"`
	Email          string       `json:"email"`
	PasswordDigest string       `json:"-"` // Never expose in JSON
	Role           Role         `json:"role"`
	Permissions    []Permission `json:"permissions"`
	IsActive       bool         `json:"is_active"`
	EmailVerified  bool         `json:"email_verified"`

	// Email-verification and password-reset state. The token columns hold
	// digests issued by out-of-band delivery flows, never raw tokens.
	EmailVerificationToken string     `json:"-"`
	PasswordResetToken     string     `json:"-"`
	PasswordResetExpiry    *time.Time `json:"-"`

	// Lockout state
	FailedLogins int        `json:"-"`
	LockedUntil  *time.Time `json:"-"`

	RefreshTokens []RefreshTokenRecord `json:"-"`

	Profile     Profile    `json:"profile"`
	CoinBalance int64      `json:"coin_balance"`
	LastActive  *time.Time `json:"last_active,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasPermission reports whether the account holds the permission. Admin role
// and the blanket admin:all permission pass unconditionally.
func (a *Account) HasPermission(p Permission) bool {
	if a.Role == RoleAdmin {
		return true
	}
	for _, held := range a.Permissions {
		if held == PermissionAll || held == p {
			return true
		}
	}
	return false
}

// SoftDelete deactivates the account and mangles its email so the address can
// be reused by a future registration. Accounts are never hard-deleted.
func (a *Account) SoftDelete(now time.Time) {
	a.IsActive = false
	a.Email = fmt.Sprintf("deleted-%d-%s", now.Unix(), a.Email)
	a.RefreshTokens = nil
	a.PasswordResetToken = ""
	a.PasswordResetExpiry = nil
	a.UpdatedAt = now
}

// NormalizeEmail lowercases and trims an email address. All lookups and
// uniqueness checks operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthContext holds the identity attached to a request after authentication
type AuthContext struct {
	AccountID   string
	Email       string
	Role        Role
	Permissions []Permission
}

// IsAdmin reports whether the context belongs to an admin account
func (ac *AuthContext) IsAdmin() bool {
	return ac.Role == RoleAdmin
}

// HasPermission checks a single permission with the admin bypass
func (ac *AuthContext) HasPermission(p Permission) bool {
	if ac.IsAdmin() {
		return true
	}
	for _, held := range ac.Permissions {
		if held == PermissionAll || held == p {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether any held permission intersects the allowed set
func (ac *AuthContext) HasAnyPermission(allowed ...Permission) bool {
	if ac.IsAdmin() {
		return true
	}
	for _, p := range allowed {
		if ac.HasPermission(p) {
			return true
		}
	}
	return false
}
