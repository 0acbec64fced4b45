package auth

import "errors"

// Authentication errors. Unknown account, wrong password, and wrong role all
// surface as ErrInvalidCredentials so responses cannot be used to enumerate
// accounts.
var (
	ErrInvalidCredentials = errors.New("invalid email, password, or role") // 401
	ErrNoPasswordDigest   = errors.New("account has no password digest")   // projection bug, 500
	ErrAccountLocked      = errors.New("account is temporarily locked")    // 423
	ErrAccountDisabled    = errors.New("account is disabled")              // 401
	ErrUnauthenticated    = errors.New("authentication required")          // 401
	ErrForbidden          = errors.New("insufficient permissions")         // 403
)

// Token errors. Expired and malformed are distinguished for observability;
// both map to 401 outward.
var (
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("token malformed or signature invalid")
	ErrRefreshNotActive = errors.New("refresh token not recognized")
)
