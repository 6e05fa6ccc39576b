package quiz

import (
	"time"

	"github.com/google/uuid"
)

// MaxQuestionsPerQuiz is the largest quiz the backend will serve.
const MaxQuestionsPerQuiz = 50

// AttemptResult is the ephemeral record of one finished quiz run, as
// submitted by the player. Bounds: 0 <= CorrectAnswers <= TotalQuestions
// <= MaxQuestionsPerQuiz. Violating submissions are rejected, not clamped.
type AttemptResult struct {
	UserID         uuid.UUID `json:"user_id"`
	QuizID         uuid.UUID `json:"quiz_id"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Percentage of correct answers, 0-100. Only meaningful for results that
// passed validation.
func (r *AttemptResult) Percentage() float64 {
	if r.TotalQuestions == 0 {
		return 0
	}
	return float64(r.CorrectAnswers) / float64(r.TotalQuestions) * 100
}
