package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizClashClient/internal/backend"
	"quizClashClient/internal/scoring"
	"quizClashClient/internal/types/profile"
	"quizClashClient/internal/types/quiz"
)

func TestSubmitQuizResultRejectsInvalidLocally(t *testing.T) {
	fake := &fakeClient{}
	svc := NewQuizService(testViewer, fake)

	_, err := svc.SubmitQuizResult(context.Background(), &quiz.AttemptResult{
		CorrectAnswers: 11,
		TotalQuestions: 10,
		SubmittedAt:    time.Now(),
	})
	var invalid *scoring.InvalidSubmissionError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, fake.submitCalls, "invalid submissions never reach the backend")
}

func TestSubmitQuizResultAdoptsAuthoritativeProfile(t *testing.T) {
	authoritative := &profile.UserScoreProfile{
		UserID:           testViewer,
		TotalScore:       115,
		CurrentStreak:    4,
		QuizzesCompleted: 9,
	}
	fake := &fakeClient{profile: authoritative}
	svc := NewQuizService(testViewer, fake)

	p, err := svc.SubmitQuizResult(context.Background(), &quiz.AttemptResult{
		QuizID:         uuid.New(),
		CorrectAnswers: 8,
		TotalQuestions: 10,
		SubmittedAt:    time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 115, p.TotalScore)

	cached := svc.Profile()
	require.NotNil(t, cached)
	assert.Equal(t, authoritative.TotalScore, cached.TotalScore)
	assert.Equal(t, 1, fake.submitCalls)
}

func TestSubmitQuizResultPropagatesNetworkError(t *testing.T) {
	fake := &fakeClient{failWith: &backend.NetworkError{Op: "submit", Err: errors.New("timeout")}}
	svc := NewQuizService(testViewer, fake)

	seed := &profile.UserScoreProfile{UserID: testViewer, TotalScore: 100}
	svc.SetProfile(seed)

	_, err := svc.SubmitQuizResult(context.Background(), &quiz.AttemptResult{
		QuizID:         uuid.New(),
		CorrectAnswers: 10,
		TotalQuestions: 10,
		SubmittedAt:    time.Now(),
	})
	var netErr *backend.NetworkError
	require.ErrorAs(t, err, &netErr)

	// The outcome is unknown, so the local profile stays what it was until a
	// reconciling read.
	cached := svc.Profile()
	require.NotNil(t, cached)
	assert.Equal(t, 100, cached.TotalScore)
}

func TestProfileReturnsCopy(t *testing.T) {
	svc := NewQuizService(testViewer, &fakeClient{})
	svc.SetProfile(&profile.UserScoreProfile{TotalScore: 50})

	p := svc.Profile()
	p.TotalScore = 9999

	assert.Equal(t, 50, svc.Profile().TotalScore)
}
