package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/storage"
)

const accountColumns = `id, email, password_digest, role, permissions, is_active, email_verified,
	email_verification_token, password_reset_token, password_reset_expiry,
	failed_logins, locked_until, full_name, institution, department, experience_years,
	specialization, coin_balance, last_active, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// CreateAccount inserts a new account row
func (s *Store) CreateAccount(ctx context.Context, account *auth.Account) error {
	account.Email = auth.NormalizeEmail(account.Email)
	perms := make(pq.StringArray, len(account.Permissions))
	for i, p := range account.Permissions {
		perms[i] = string(p)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_digest, role, permissions, is_active,
			email_verified, email_verification_token, password_reset_token, password_reset_expiry,
			failed_logins, locked_until, full_name, institution, department,
			experience_years, specialization, coin_balance, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, account.ID, account.Email, account.PasswordDigest, account.Role, perms,
		account.IsActive, account.EmailVerified, account.EmailVerificationToken,
		account.PasswordResetToken, account.PasswordResetExpiry,
		account.FailedLogins, account.LockedUntil,
		account.Profile.FullName, account.Profile.Institution, account.Profile.Department,
		account.Profile.ExperienceYears, account.Profile.Specialization,
		account.CoinBalance, account.LastActive, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) scanAccount(row *sql.Row) (*auth.Account, error) {
	account := &auth.Account{}
	var perms pq.StringArray
	err := row.Scan(&account.ID, &account.Email, &account.PasswordDigest, &account.Role,
		&perms, &account.IsActive, &account.EmailVerified, &account.EmailVerificationToken,
		&account.PasswordResetToken, &account.PasswordResetExpiry, &account.FailedLogins,
		&account.LockedUntil, &account.Profile.FullName, &account.Profile.Institution,
		&account.Profile.Department, &account.Profile.ExperienceYears,
		&account.Profile.Specialization, &account.CoinBalance, &account.LastActive,
		&account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	account.Permissions = make([]auth.Permission, len(perms))
	for i, p := range perms {
		account.Permissions[i] = auth.Permission(p)
	}
	return account, nil
}

func (s *Store) loadRefreshTokens(ctx context.Context, account *auth.Account) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT digest, issued_at FROM refresh_tokens
		WHERE account_id = $1 ORDER BY issued_at ASC, seq ASC
	`, account.ID)
	if err != nil {
		return fmt.Errorf("failed to load refresh tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rt auth.RefreshTokenRecord
		if err := rows.Scan(&rt.Digest, &rt.IssuedAt); err != nil {
			return fmt.Errorf("failed to scan refresh token: %w", err)
		}
		account.RefreshTokens = append(account.RefreshTokens, rt)
	}
	return rows.Err()
}

// GetAccountByID returns the account with the given id
func (s *Store) GetAccountByID(ctx context.Context, id string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := s.scanAccount(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadRefreshTokens(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccountByEmail returns the account with the given normalized email
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, auth.NormalizeEmail(email))
	account, err := s.scanAccount(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadRefreshTokens(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount persists all mutable fields of the account
func (s *Store) UpdateAccount(ctx context.Context, account *auth.Account) error {
	perms := make(pq.StringArray, len(account.Permissions))
	for i, p := range account.Permissions {
		perms[i] = string(p)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET email = $2, password_digest = $3, role = $4, permissions = $5,
			is_active = $6, email_verified = $7, email_verification_token = $8,
			password_reset_token = $9, password_reset_expiry = $10,
			failed_logins = $11, locked_until = $12,
			full_name = $13, institution = $14, department = $15, experience_years = $16,
			specialization = $17, coin_balance = $18, updated_at = NOW()
		WHERE id = $1
	`, account.ID, account.Email, account.PasswordDigest, account.Role, perms,
		account.IsActive, account.EmailVerified, account.EmailVerificationToken,
		account.PasswordResetToken, account.PasswordResetExpiry,
		account.FailedLogins, account.LockedUntil,
		account.Profile.FullName, account.Profile.Institution, account.Profile.Department,
		account.Profile.ExperienceYears, account.Profile.Specialization, account.CoinBalance)
	if err != nil {
		if isDuplicate(err) {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListAccounts returns accounts ordered by creation time
func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]*auth.Account, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY created_at ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account := &auth.Account{}
		var perms pq.StringArray
		err := rows.Scan(&account.ID, &account.Email, &account.PasswordDigest, &account.Role,
			&perms, &account.IsActive, &account.EmailVerified, &account.EmailVerificationToken,
			&account.PasswordResetToken, &account.PasswordResetExpiry, &account.FailedLogins,
			&account.LockedUntil, &account.Profile.FullName, &account.Profile.Institution,
			&account.Profile.Department, &account.Profile.ExperienceYears,
			&account.Profile.Specialization, &account.CoinBalance, &account.LastActive,
			&account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Permissions = make([]auth.Permission, len(perms))
		for i, p := range perms {
			account.Permissions[i] = auth.Permission(p)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// AddRefreshToken appends a digest and evicts the oldest rows beyond cap
func (s *Store) AddRefreshToken(ctx context.Context, accountID, digest string, issuedAt time.Time, cap int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (account_id, digest, issued_at) VALUES ($1, $2, $3)
	`, accountID, digest, issuedAt)
	if err != nil {
		return fmt.Errorf("failed to add refresh token: %w", err)
	}
	if cap <= 0 {
		return nil
	}
	// seq breaks ties between tokens issued at the same instant so the
	// retained set is always the most recently inserted.
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE account_id = $1 AND digest NOT IN (
			SELECT digest FROM refresh_tokens
			WHERE account_id = $1 ORDER BY issued_at DESC, seq DESC LIMIT $2
		)
	`, accountID, cap)
	if err != nil {
		return fmt.Errorf("failed to evict refresh tokens: %w", err)
	}
	return nil
}

// RemoveRefreshToken removes a single digest
func (s *Store) RemoveRefreshToken(ctx context.Context, accountID, digest string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE account_id = $1 AND digest = $2`, accountID, digest)
	if err != nil {
		return fmt.Errorf("failed to remove refresh token: %w", err)
	}
	return nil
}

// ClearRefreshTokens removes every digest for the account
func (s *Store) ClearRefreshTokens(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to clear refresh tokens: %w", err)
	}
	return nil
}

// HasRefreshToken reports whether the digest is active for the account
func (s *Store) HasRefreshToken(ctx context.Context, accountID, digest string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE account_id = $1 AND digest = $2)
	`, accountID, digest).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check refresh token: %w", err)
	}
	return exists, nil
}

// TouchLastActive updates the last-active timestamp only
func (s *Store) TouchLastActive(ctx context.Context, accountID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET last_active = $2 WHERE id = $1`, accountID, at)
	if err != nil {
		return fmt.Errorf("failed to touch last active: %w", err)
	}
	return nil
}

// PurgeRefreshTokensBefore removes refresh tokens issued before the cutoff
func (s *Store) PurgeRefreshTokensBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE issued_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", err)
	}
	return int(affected), nil
}
