// Package postgres implements the account store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/brightpath/brightpath/pkg/storage"
)

// Store implements storage.AccountStore on PostgreSQL
type Store struct {
	db     *sql.DB
	config storage.Config
}

// NewStore connects to PostgreSQL and verifies the connection
func NewStore(config storage.Config) (*Store, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMaxConns / 4)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Store{db: db, config: config}, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests with sqlmock.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks and sibling packages
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables if they do not exist
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_digest TEXT NOT NULL,
		role TEXT NOT NULL,
		permissions TEXT[] NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		email_verification_token TEXT NOT NULL DEFAULT '',
		password_reset_token TEXT NOT NULL DEFAULT '',
		password_reset_expiry TIMESTAMPTZ,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TIMESTAMPTZ,
		full_name TEXT NOT NULL DEFAULT '',
		institution TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		experience_years INTEGER NOT NULL DEFAULT 0,
		specialization TEXT NOT NULL DEFAULT '',
		coin_balance BIGINT NOT NULL DEFAULT 0,
		last_active TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		seq BIGSERIAL,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		digest TEXT NOT NULL,
		issued_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (account_id, digest)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_issued_at ON refresh_tokens(issued_at)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		account_id TEXT,
		email TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events(created_at)`,
	`CREATE TABLE IF NOT EXISTS reward_transactions (
		id BIGSERIAL PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		amount BIGINT NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		unlocked_at TIMESTAMPTZ,
		PRIMARY KEY (account_id, code)
	)`,
}
