package leaderboard

import "github.com/google/uuid"

type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	UserID           uuid.UUID `json:"user_id"`
	Username         string    `json:"username"`
	TotalScore       int       `json:"total_score"`
	CurrentStreak    int       `json:"current_streak"`
	QuizzesCompleted int       `json:"quizzes_completed"`
	IsCurrentUser    bool      `json:"is_current_user"`
}

type Leaderboard struct {
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position"`
	TotalUsers   int                 `json:"total_users"`
}
