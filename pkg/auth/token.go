package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenConfig configures the issuer. Access and refresh secrets must be
// independent so that leaking one token class does not compromise the other.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AccessClaims is the signed claim set of an access token. Subject carries the
// account id.
type AccessClaims struct {
	Email       string       `json:"email"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the signed claim set of a refresh token. It authorizes
// nothing but minting a new access token.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer creates and validates signed, time-limited access and refresh
// tokens (HS256). Expiry is enforced strictly with no clock-skew leeway.
type TokenIssuer struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer. Zero TTLs fall back to the defaults.
func NewTokenIssuer(config TokenConfig) *TokenIssuer {
	if config.AccessTTL == 0 {
		config.AccessTTL = DefaultAccessTTL
	}
	if config.RefreshTTL == 0 {
		config.RefreshTTL = DefaultRefreshTTL
	}
	return &TokenIssuer{config: config, now: time.Now}
}

// WithClock overrides the issuer's clock. Used by tests to simulate expiry.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	ti.now = now
	return ti
}

// AccessTTL returns the configured access token lifetime
func (ti *TokenIssuer) AccessTTL() time.Duration {
	return ti.config.AccessTTL
}

// RefreshTTL returns the configured refresh token lifetime
func (ti *TokenIssuer) RefreshTTL() time.Duration {
	return ti.config.RefreshTTL
}

// IssueAccess mints an access token carrying the account's identity, role and
// permission set.
func (ti *TokenIssuer) IssueAccess(account *Account) (string, error) {
	now := ti.now()
	claims := AccessClaims{
		Email:       account.Email,
		Role:        account.Role,
		Permissions: account.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.config.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.config.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefresh mints a refresh token for the account id
func (ti *TokenIssuer) IssueRefresh(accountID string) (string, error) {
	now := ti.now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.config.RefreshTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.config.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns its claims
func (ti *TokenIssuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := ti.verify(token, claims, ti.config.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims
func (ti *TokenIssuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := ti.verify(token, claims, ti.config.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (ti *TokenIssuer) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenMalformed
	}
	if !parsed.Valid {
		return ErrTokenMalformed
	}
	return nil
}

// DigestToken computes the SHA-256 hex digest of a token for storage and
// lookup. Raw refresh tokens are never persisted.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
