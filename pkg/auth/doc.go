// Package auth implements the authentication core for the Brightpath learning
// platform: account and role types, password hashing, JWT access/refresh token
// issuance and verification, and the account lockout state machine.
//
// # Overview
//
// Accounts carry a role (student, instructor, admin) and a permission set derived
// from that role at creation time via DerivePermissions. Credentials are verified
// with bcrypt; successful logins produce a short-lived access token and a
// longer-lived refresh token, signed with independent secrets so that leaking one
// token class does not compromise the other.
//
// # Token Flow
//
// Issuance:
//
//	issuer := auth.NewTokenIssuer(auth.TokenConfig{
//		AccessSecret:  accessSecret,
//		RefreshSecret: refreshSecret,
//		AccessTTL:     15 * time.Minute,
//		RefreshTTL:    7 * 24 * time.Hour,
//	})
//	access, _ := issuer.IssueAccess(account)
//	refresh, _ := issuer.IssueRefresh(account.ID)
//
// Verification distinguishes expired tokens from malformed or forged ones so the
// two can be counted separately, although both surface as a 401 to clients:
//
//	claims, err := issuer.VerifyAccess(token)
//	if errors.Is(err, auth.ErrTokenExpired) { ... }
//
// Raw refresh tokens are never persisted; the account stores SHA-256 digests,
// bounded to a fixed cap with oldest-first eviction.
//
// # Lockout
//
// LockoutPolicy tracks consecutive failed logins per account. Reaching the
// threshold locks the account for a fixed duration; attempts while locked are
// rejected without extending the lock, and the first failure after expiry
// restarts the counter at one. The lock check runs before the bcrypt comparison
// so locked-out requests never pay the hashing cost.
//
// # Related Packages
//
//   - pkg/middleware: HTTP authentication middleware and role/permission gates
//   - pkg/storage: account persistence
//   - pkg/api: HTTP handlers consuming this package
package auth
