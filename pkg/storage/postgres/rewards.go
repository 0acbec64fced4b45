package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brightpath/brightpath/pkg/rewards"
	"github.com/brightpath/brightpath/pkg/storage"
)

// RecordTransaction inserts the transaction and applies the amount to the
// account's balance in one database transaction.
func (s *Store) RecordTransaction(ctx context.Context, tx *rewards.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	result, err := dbTx.ExecContext(ctx,
		`UPDATE accounts SET coin_balance = coin_balance + $1, updated_at = NOW() WHERE id = $2`,
		tx.Amount, tx.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	err = dbTx.QueryRowContext(ctx,
		`INSERT INTO reward_transactions (account_id, amount, reason, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		tx.AccountID, tx.Amount, tx.Reason, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return dbTx.Commit()
}

// ListTransactions returns the account's transactions, newest first
func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]*rewards.Transaction, error) {
	query := `
		SELECT id, account_id, amount, reason, created_at
		FROM reward_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*rewards.Transaction
	for rows.Next() {
		tx := &rewards.Transaction{}
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Reason, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// LastTransactionAt returns the newest transaction time for the reason
func (s *Store) LastTransactionAt(ctx context.Context, accountID, reason string) (*time.Time, error) {
	var at sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM reward_transactions WHERE account_id = $1 AND reason = $2`,
		accountID, reason,
	).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("failed to query last transaction: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}

// GetBalance returns the account's coin balance
func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT coin_balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return balance, nil
}

// UpsertAchievement creates or replaces an achievement record
func (s *Store) UpsertAchievement(ctx context.Context, achievement *rewards.Achievement) error {
	query := `
		INSERT INTO achievements (account_id, code, progress, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, code)
		DO UPDATE SET progress = EXCLUDED.progress, unlocked_at = EXCLUDED.unlocked_at`

	var unlockedAt sql.NullTime
	if achievement.UnlockedAt != nil {
		unlockedAt = sql.NullTime{Time: *achievement.UnlockedAt, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, query, achievement.AccountID, achievement.Code, achievement.Progress, unlockedAt); err != nil {
		return fmt.Errorf("failed to upsert achievement: %w", err)
	}
	return nil
}

// ListAchievements returns the account's achievement records
func (s *Store) ListAchievements(ctx context.Context, accountID string) ([]*rewards.Achievement, error) {
	query := `
		SELECT account_id, code, progress, unlocked_at
		FROM achievements
		WHERE account_id = $1
		ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*rewards.Achievement
	for rows.Next() {
		achievement := &rewards.Achievement{}
		var unlockedAt sql.NullTime
		if err := rows.Scan(&achievement.AccountID, &achievement.Code, &achievement.Progress, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		if unlockedAt.Valid {
			at := unlockedAt.Time
			achievement.UnlockedAt = &at
		}
		achievements = append(achievements, achievement)
	}
	return achievements, rows.Err()
}
