package services

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"quizClashClient/internal/backend"
	"quizClashClient/internal/scoring"
	"quizClashClient/internal/types/profile"
	"quizClashClient/internal/types/quiz"
)

// QuizService submits quiz results and interprets the scoring outcome. It
// validates and scores attempts locally before any network call, then
// reconciles with the profile the backend returns. Known discrepancy: some
// backend deployments still award per-correct-answer points instead of the
// fixed completion bonus; when the numbers disagree the authoritative
// profile wins and the mismatch is logged for the product team.
type QuizService struct {
	viewer  uuid.UUID
	backend backend.Client

	mu      sync.Mutex
	profile *profile.UserScoreProfile
}

func NewQuizService(viewer uuid.UUID, client backend.Client) *QuizService {
	return &QuizService{
		viewer:  viewer,
		backend: client,
	}
}

// Profile returns the last authoritative score profile seen for the viewer,
// or nil before the first submission.
func (s *QuizService) Profile() *profile.UserScoreProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	cp := *s.profile
	return &cp
}

// SubmitQuizResult scores one finished attempt. Invalid submissions are
// rejected locally; everything else goes to the backend, whose returned
// profile becomes the authoritative local view.
func (s *QuizService) SubmitQuizResult(ctx context.Context, result *quiz.AttemptResult) (*profile.UserScoreProfile, error) {
	result.UserID = s.viewer

	points, err := scoring.ScoreAttempt(result)
	if err != nil {
		log.Printf("SubmitQuizResult: rejected locally: %v", err)
		return nil, err
	}

	var expected *profile.UserScoreProfile
	s.mu.Lock()
	if s.profile != nil {
		if next, streakErr := scoring.UpdateStreak(*s.profile, result.SubmittedAt); streakErr == nil {
			next.TotalScore += points
			next.QuizzesCompleted++
			expected = &next
		}
	}
	s.mu.Unlock()

	authoritative, err := s.backend.SubmitQuizResult(ctx, result)
	if err != nil {
		log.Printf("SubmitQuizResult: backend call failed: %v", err)
		return nil, err
	}

	if expected != nil {
		if authoritative.TotalScore != expected.TotalScore {
			log.Printf("SubmitQuizResult: score mismatch: backend awarded %d points, completion-bonus formula expected %d",
				authoritative.TotalScore-expected.TotalScore+points, points)
		}
		if authoritative.CurrentStreak != expected.CurrentStreak {
			log.Printf("SubmitQuizResult: streak mismatch: backend says %d, canonical-day arithmetic expected %d",
				authoritative.CurrentStreak, expected.CurrentStreak)
		}
	}

	s.mu.Lock()
	s.profile = authoritative
	s.mu.Unlock()

	return authoritative, nil
}

// SetProfile seeds the local profile view, typically on startup from a
// backend read.
func (s *QuizService) SetProfile(p *profile.UserScoreProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}
