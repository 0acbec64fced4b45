package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpath/brightpath/pkg/observability"
)

// Store persists reward transactions and achievements. RecordTransaction must
// also apply the amount to the account's coin balance.
type Store interface {
	RecordTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error)

	// LastTransactionAt returns the time of the most recent transaction with
	// the reason, or nil when none exists.
	LastTransactionAt(ctx context.Context, accountID, reason string) (*time.Time, error)

	GetBalance(ctx context.Context, accountID string) (int64, error)

	UpsertAchievement(ctx context.Context, achievement *Achievement) error
	ListAchievements(ctx context.Context, accountID string) ([]*Achievement, error)
}

// Service awards coins and tracks achievements
type Service struct {
	store  Store
	logger *observability.Logger
	now    func() time.Time
}

// NewService creates a rewards service
func NewService(store Store, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// DailyLoginBonus awards the login bonus at most once per UTC day and unlocks
// the first-login achievement on the account's first award.
func (s *Service) DailyLoginBonus(ctx context.Context, accountID string) (bool, error) {
	now := s.now().UTC()

	last, err := s.store.LastTransactionAt(ctx, accountID, ReasonDailyLogin)
	if err != nil {
		return false, fmt.Errorf("failed to check last login bonus: %w", err)
	}
	if last != nil && sameDay(last.UTC(), now) {
		return false, nil
	}

	tx := &Transaction{
		AccountID: accountID,
		Amount:    DailyLoginCoins,
		Reason:    ReasonDailyLogin,
		CreatedAt: now,
	}
	if err := s.store.RecordTransaction(ctx, tx); err != nil {
		return false, fmt.Errorf("failed to award login bonus: %w", err)
	}

	if last == nil {
		s.unlock(ctx, accountID, AchievementFirstLogin, now)
	}
	return true, nil
}

// ProgressMilestone awards coins for a progress milestone. Unknown milestones
// are rejected so callers cannot mint arbitrary coins.
func (s *Service) ProgressMilestone(ctx context.Context, accountID, milestone string) (int64, error) {
	coins, ok := milestoneCoins[milestone]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMilestone, milestone)
	}

	now := s.now().UTC()
	tx := &Transaction{
		AccountID: accountID,
		Amount:    coins,
		Reason:    milestone,
		CreatedAt: now,
	}
	if err := s.store.RecordTransaction(ctx, tx); err != nil {
		return 0, fmt.Errorf("failed to award milestone: %w", err)
	}

	if milestone == ReasonCourseComplete {
		s.unlock(ctx, accountID, AchievementCourseComplete, now)
	}
	return coins, nil
}

// Summary returns the account's balance and recent transactions
func (s *Service) Summary(ctx context.Context, accountID string, limit int) (*Summary, error) {
	balance, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	transactions, err := s.store.ListTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return &Summary{Balance: balance, Transactions: transactions}, nil
}

// Achievements returns the account's achievement records
func (s *Service) Achievements(ctx context.Context, accountID string) ([]*Achievement, error) {
	achievements, err := s.store.ListAchievements(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	return achievements, nil
}

// unlock marks an achievement earned. Failures are logged, not returned; the
// coin award already succeeded.
func (s *Service) unlock(ctx context.Context, accountID, code string, at time.Time) {
	err := s.store.UpsertAchievement(ctx, &Achievement{
		AccountID:  accountID,
		Code:       code,
		Progress:   100,
		UnlockedAt: &at,
	})
	if err != nil {
		s.logger.WithError(err).
			WithField("achievement", code).
			Warn("Failed to unlock achievement")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
