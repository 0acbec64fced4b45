package rewards

import (
	"errors"
	"time"
)

// ErrUnknownMilestone rejects progress reports for milestones outside the
// fixed coin table.
var ErrUnknownMilestone = errors.New("unknown milestone")

// Transaction reasons
const (
	ReasonDailyLogin     = "daily_login"
	ReasonLessonComplete = "lesson_complete"
	ReasonQuizPassed     = "quiz_passed"
	ReasonCourseComplete = "course_complete"
)

// Achievement codes
const (
	AchievementFirstLogin     = "first_login"
	AchievementCourseComplete = "course_complete"
	AchievementWeekStreak     = "week_streak"
)

// Transaction is a single coin grant
type Transaction struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Achievement tracks progress toward an unlockable badge. UnlockedAt is nil
// until the achievement is earned.
type Achievement struct {
	AccountID  string     `json:"account_id"`
	Code       string     `json:"code"`
	Progress   int        `json:"progress"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Summary is the per-account rewards view returned by the API
type Summary struct {
	Balance      int64          `json:"balance"`
	Transactions []*Transaction `json:"transactions"`
}

// milestoneCoins maps progress milestones to their coin value
var milestoneCoins = map[string]int64{
	ReasonLessonComplete: 5,
	ReasonQuizPassed:     10,
	ReasonCourseComplete: 50,
}

// DailyLoginCoins is the once-per-day login bonus
const DailyLoginCoins int64 = 10
