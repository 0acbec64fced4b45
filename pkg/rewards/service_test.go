package rewards

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brightpath/brightpath/pkg/observability"
)

type fakeStore struct {
	transactions []*Transaction
	achievements map[string]*Achievement
	recordErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{achievements: make(map[string]*Achievement)}
}

func (s *fakeStore) RecordTransaction(ctx context.Context, tx *Transaction) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *fakeStore) ListTransactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	var out []*Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) LastTransactionAt(ctx context.Context, accountID, reason string) (*time.Time, error) {
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

func (s *fakeStore) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			balance += tx.Amount
		}
	}
	return balance, nil
}

func (s *fakeStore) UpsertAchievement(ctx context.Context, achievement *Achievement) error {
	s.achievements[achievement.AccountID+"/"+achievement.Code] = achievement
	return nil
}

func (s *fakeStore) ListAchievements(ctx context.Context, accountID string) ([]*Achievement, error) {
	var out []*Achievement
	for _, a := range s.achievements {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	return out, nil
}

func testService(store Store) *Service {
	return NewService(store, observability.NewLogger(observability.ErrorLevel, nil))
}

func TestDailyLoginBonus(t *testing.T) {
	t.Run("first login awards coins and first-login achievement", func(t *testing.T) {
		store := newFakeStore()
		svc := testService(store)

		awarded, err := svc.DailyLoginBonus(context.Background(), "acct-1")
		if err != nil {
			t.Fatalf("DailyLoginBonus() error = %v", err)
		}
		if !awarded {
			t.Fatal("Expected bonus awarded on first login")
		}
		if len(store.transactions) != 1 {
			t.Fatalf("Expected 1 transaction, got %d", len(store.transactions))
		}
		if store.transactions[0].Amount != DailyLoginCoins {
			t.Errorf("Expected %d coins, got %d", DailyLoginCoins, store.transactions[0].Amount)
		}
		if _, ok := store.achievements["acct-1/"+AchievementFirstLogin]; !ok {
			t.Error("Expected first-login achievement unlocked")
		}
	})

	t.Run("second login same day is skipped", func(t *testing.T) {
		store := newFakeStore()
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		svc := testService(store).WithClock(func() time.Time { return now })

		if _, err := svc.DailyLoginBonus(context.Background(), "acct-1"); err != nil {
			t.Fatalf("DailyLoginBonus() error = %v", err)
		}

		now = now.Add(6 * time.Hour)
		awarded, err := svc.DailyLoginBonus(context.Background(), "acct-1")
		if err != nil {
			t.Fatalf("DailyLoginBonus() error = %v", err)
		}
		if awarded {
			t.Error("Expected no second bonus on the same day")
		}
		if len(store.transactions) != 1 {
			t.Errorf("Expected 1 transaction, got %d", len(store.transactions))
		}
	})

	t.Run("next day awards again without achievement", func(t *testing.T) {
		store := newFakeStore()
		now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
		svc := testService(store).WithClock(func() time.Time { return now })

		if _, err := svc.DailyLoginBonus(context.Background(), "acct-1"); err != nil {
			t.Fatalf("DailyLoginBonus() error = %v", err)
		}
		delete(store.achievements, "acct-1/"+AchievementFirstLogin)

		now = now.Add(2 * time.Hour) // crosses midnight UTC
		awarded, err := svc.DailyLoginBonus(context.Background(), "acct-1")
		if err != nil {
			t.Fatalf("DailyLoginBonus() error = %v", err)
		}
		if !awarded {
			t.Error("Expected bonus on the next day")
		}
		if _, ok := store.achievements["acct-1/"+AchievementFirstLogin]; ok {
			t.Error("Expected first-login achievement only on the first award")
		}
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		store := newFakeStore()
		store.recordErr = errors.New("db down")
		svc := testService(store)

		if _, err := svc.DailyLoginBonus(context.Background(), "acct-1"); err == nil {
			t.Error("Expected error when store fails")
		}
	})
}

func TestProgressMilestone(t *testing.T) {
	t.Run("known milestones award their coin value", func(t *testing.T) {
		store := newFakeStore()
		svc := testService(store)

		tests := []struct {
			milestone string
			coins     int64
		}{
			{ReasonLessonComplete, 5},
			{ReasonQuizPassed, 10},
			{ReasonCourseComplete, 50},
		}
		for _, tt := range tests {
			coins, err := svc.ProgressMilestone(context.Background(), "acct-1", tt.milestone)
			if err != nil {
				t.Fatalf("ProgressMilestone(%s) error = %v", tt.milestone, err)
			}
			if coins != tt.coins {
				t.Errorf("ProgressMilestone(%s) = %d coins, want %d", tt.milestone, coins, tt.coins)
			}
		}

		balance, _ := store.GetBalance(context.Background(), "acct-1")
		if balance != 65 {
			t.Errorf("Expected balance 65, got %d", balance)
		}
	})

	t.Run("course completion unlocks achievement", func(t *testing.T) {
		store := newFakeStore()
		svc := testService(store)

		if _, err := svc.ProgressMilestone(context.Background(), "acct-1", ReasonCourseComplete); err != nil {
			t.Fatalf("ProgressMilestone() error = %v", err)
		}
		achievement, ok := store.achievements["acct-1/"+AchievementCourseComplete]
		if !ok {
			t.Fatal("Expected course-complete achievement")
		}
		if achievement.UnlockedAt == nil {
			t.Error("Expected achievement unlocked")
		}
	})

	t.Run("unknown milestone rejected", func(t *testing.T) {
		svc := testService(newFakeStore())
		if _, err := svc.ProgressMilestone(context.Background(), "acct-1", "made_up"); err == nil {
			t.Error("Expected error for unknown milestone")
		}
	})
}

func TestSummary(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)

	svc.ProgressMilestone(context.Background(), "acct-1", ReasonLessonComplete)
	svc.ProgressMilestone(context.Background(), "acct-1", ReasonQuizPassed)
	svc.ProgressMilestone(context.Background(), "acct-2", ReasonCourseComplete)

	summary, err := svc.Summary(context.Background(), "acct-1", 10)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Balance != 15 {
		t.Errorf("Expected balance 15, got %d", summary.Balance)
	}
	if len(summary.Transactions) != 2 {
		t.Errorf("Expected 2 transactions, got %d", len(summary.Transactions))
	}
}
