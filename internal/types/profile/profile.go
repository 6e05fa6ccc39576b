package profile

import (
	"time"

	"github.com/google/uuid"
)

// UserScoreProfile is the per-user gamification aggregate. It is mutated
// exactly once per accepted quiz attempt and at most once per calendar day
// for streak purposes.
type UserScoreProfile struct {
	UserID           uuid.UUID  `json:"user_id"`
	Username         string     `json:"username"`
	TotalScore       int        `json:"total_score"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	QuizzesCompleted int        `json:"quizzes_completed"`
	LastActiveDate   *time.Time `json:"last_active_date,omitempty"`
}
