package ranking

import (
	"iter"
	"sort"

	"github.com/google/uuid"

	"quizClashClient/internal/types/leaderboard"
	"quizClashClient/internal/types/profile"
)

// Rank orders profiles into leaderboard entries: total score descending,
// ties broken by ascending user ID so repeated calls over the same input
// always produce the same order. Ranks are 1-based and strictly increasing
// even across equal scores, which keeps pagination windows well-defined.
// The viewer's entry, when present, is the only one flagged IsCurrentUser.
//
// The returned sequence is lazy and restartable; each iteration walks a
// private sorted copy of the input.
func Rank(profiles []*profile.UserScoreProfile, viewerID uuid.UUID) iter.Seq[*leaderboard.LeaderboardEntry] {
	sorted := make([]*profile.UserScoreProfile, len(profiles))
	copy(sorted, profiles)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TotalScore != sorted[j].TotalScore {
			return sorted[i].TotalScore > sorted[j].TotalScore
		}
		return sorted[i].UserID.String() < sorted[j].UserID.String()
	})

	return func(yield func(*leaderboard.LeaderboardEntry) bool) {
		for i, p := range sorted {
			entry := &leaderboard.LeaderboardEntry{
				Rank:             i + 1,
				UserID:           p.UserID,
				Username:         p.Username,
				TotalScore:       p.TotalScore,
				CurrentStreak:    p.CurrentStreak,
				QuizzesCompleted: p.QuizzesCompleted,
				IsCurrentUser:    p.UserID == viewerID,
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// Top materializes the first limit entries plus, separately, the viewer's
// own position when it falls outside that window. limit <= 0 means no limit.
func Top(profiles []*profile.UserScoreProfile, viewerID uuid.UUID, limit int) *leaderboard.Leaderboard {
	board := &leaderboard.Leaderboard{TotalUsers: len(profiles)}

	for entry := range Rank(profiles, viewerID) {
		if limit <= 0 || entry.Rank <= limit {
			board.Entries = append(board.Entries, entry)
			if entry.IsCurrentUser {
				board.UserPosition = entry
			}
			continue
		}
		if board.UserPosition != nil {
			break
		}
		if entry.IsCurrentUser {
			board.UserPosition = entry
			break
		}
	}

	return board
}
