package storage

import (
	"context"
	"time"

	"github.com/brightpath/brightpath/pkg/rewards"
)

// RecordTransaction appends a coin transaction and applies the amount to the
// account's balance.
func (s *MemoryStore) RecordTransaction(ctx context.Context, tx *rewards.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[tx.AccountID]
	if !ok {
		return ErrNotFound
	}

	stored := *tx
	stored.ID = s.nextTxID
	s.nextTxID++
	s.transactions = append(s.transactions, &stored)
	tx.ID = stored.ID

	account.CoinBalance += tx.Amount
	return nil
}

// ListTransactions returns the account's transactions, newest first
func (s *MemoryStore) ListTransactions(ctx context.Context, accountID string, limit int) ([]*rewards.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*rewards.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].AccountID == accountID {
			copied := *s.transactions[i]
			out = append(out, &copied)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// LastTransactionAt returns the newest transaction time for the reason
func (s *MemoryStore) LastTransactionAt(ctx context.Context, accountID, reason string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	for _, tx := range s.transactions {
		if tx.AccountID == accountID && tx.Reason == reason {
			at := tx.CreatedAt
			if last == nil || at.After(*last) {
				last = &at
			}
		}
	}
	return last, nil
}

// GetBalance returns the account's coin balance
func (s *MemoryStore) GetBalance(ctx context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return 0, ErrNotFound
	}
	return account.CoinBalance, nil
}

// UpsertAchievement creates or replaces an achievement record
func (s *MemoryStore) UpsertAchievement(ctx context.Context, achievement *rewards.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[achievement.AccountID]; !ok {
		return ErrNotFound
	}
	stored := *achievement
	if achievement.UnlockedAt != nil {
		at := *achievement.UnlockedAt
		stored.UnlockedAt = &at
	}
	s.achievements[achievement.AccountID+"/"+achievement.Code] = &stored
	return nil
}

// ListAchievements returns the account's achievement records
func (s *MemoryStore) ListAchievements(ctx context.Context, accountID string) ([]*rewards.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*rewards.Achievement
	for _, a := range s.achievements {
		if a.AccountID == accountID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}
