package scoring

import (
	"fmt"
	"time"

	"quizClashClient/internal/types/profile"
	"quizClashClient/internal/types/quiz"
)

const (
	// CompletionBonus is awarded once per attempt that clears PassPercentage.
	CompletionBonus = 15
	PassPercentage  = 70.0
)

// InvalidSubmissionError marks a quiz attempt that violates the bounds
// invariant. Such attempts are rejected before any backend call.
type InvalidSubmissionError struct {
	Reason string
}

func (e *InvalidSubmissionError) Error() string {
	return fmt.Sprintf("invalid submission: %s", e.Reason)
}

// OutOfOrderActivityError marks a streak update dated before the profile's
// last recorded activity. It is rejected, never silently applied.
type OutOfOrderActivityError struct {
	LastActive  time.Time
	ActivityDay time.Time
}

func (e *OutOfOrderActivityError) Error() string {
	return fmt.Sprintf("out-of-order activity: %s is before last active day %s",
		e.ActivityDay.Format("2006-01-02"), e.LastActive.Format("2006-01-02"))
}

// ScoreAttempt computes the points awarded for one quiz attempt. Attempts
// scoring at or above PassPercentage earn the fixed completion bonus,
// everything else earns zero.
func ScoreAttempt(result *quiz.AttemptResult) (int, error) {
	if err := validateAttempt(result); err != nil {
		return 0, err
	}
	if result.Percentage() >= PassPercentage {
		return CompletionBonus, nil
	}
	return 0, nil
}

func validateAttempt(result *quiz.AttemptResult) error {
	switch {
	case result.TotalQuestions <= 0:
		return &InvalidSubmissionError{Reason: "total questions must be positive"}
	case result.TotalQuestions > quiz.MaxQuestionsPerQuiz:
		return &InvalidSubmissionError{Reason: fmt.Sprintf("total questions exceeds maximum of %d", quiz.MaxQuestionsPerQuiz)}
	case result.CorrectAnswers < 0:
		return &InvalidSubmissionError{Reason: "correct answers cannot be negative"}
	case result.CorrectAnswers > result.TotalQuestions:
		return &InvalidSubmissionError{Reason: "correct answers exceeds total questions"}
	}
	return nil
}

// Day truncates t to its calendar day on the canonical clock. All streak
// arithmetic runs on UTC days so users in different timezones agree on what
// "yesterday" means; device-local time is never consulted.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b on the canonical
// clock. Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// UpdateStreak returns p advanced by qualifying activity on activityDay.
// Same-day activity leaves the streak unchanged, the next day increments it,
// any larger gap resets it to 1. Activity dated before the last recorded
// active day is rejected.
func UpdateStreak(p profile.UserScoreProfile, activityDay time.Time) (profile.UserScoreProfile, error) {
	day := Day(activityDay)

	if p.LastActiveDate == nil {
		p.CurrentStreak = 1
	} else {
		switch delta := DaysBetween(*p.LastActiveDate, day); {
		case delta < 0:
			return p, &OutOfOrderActivityError{LastActive: Day(*p.LastActiveDate), ActivityDay: day}
		case delta == 0:
			return p, nil
		case delta == 1:
			p.CurrentStreak++
		default:
			p.CurrentStreak = 1
		}
	}

	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	p.LastActiveDate = &day
	return p, nil
}
