package storage

import (
	"context"
	"errors"
	"time"

	"github.com/brightpath/brightpath/pkg/auth"
)

// Storage errors
var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Config holds storage backend configuration
type Config struct {
	// Type selects the backend: "memory" or "postgres"
	Type string

	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration
}

// DefaultConfig returns the default storage configuration
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		PostgresMaxConns: 20,
		PostgresTimeout:  5 * time.Second,
	}
}

// AccountStore defines account persistence operations
type AccountStore interface {
	// CreateAccount persists a new account. Returns ErrDuplicateEmail if the
	// normalized email is already taken.
	CreateAccount(ctx context.Context, account *auth.Account) error

	GetAccountByID(ctx context.Context, id string) (*auth.Account, error)
	// GetAccountByEmail looks up by normalized email and includes the password
	// digest and security state.
	GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error)

	// UpdateAccount persists all mutable fields of the account, including
	// lockout state and profile.
	UpdateAccount(ctx context.Context, account *auth.Account) error

	ListAccounts(ctx context.Context, limit, offset int) ([]*auth.Account, error)

	// AddRefreshToken appends a refresh token digest, evicting the oldest
	// entries beyond cap.
	AddRefreshToken(ctx context.Context, accountID, digest string, issuedAt time.Time, cap int) error
	RemoveRefreshToken(ctx context.Context, accountID, digest string) error
	ClearRefreshTokens(ctx context.Context, accountID string) error
	HasRefreshToken(ctx context.Context, accountID, digest string) (bool, error)

	// TouchLastActive updates the last-active timestamp. Callers treat this as
	// fire-and-forget.
	TouchLastActive(ctx context.Context, accountID string, at time.Time) error

	// PurgeRefreshTokensBefore removes refresh token entries issued before the
	// cutoff across all accounts. Used by the maintenance jobs.
	PurgeRefreshTokensBefore(ctx context.Context, cutoff time.Time) (int, error)
}
