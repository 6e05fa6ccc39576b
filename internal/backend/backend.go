package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"quizClashClient/internal/types/friendship"
	"quizClashClient/internal/types/profile"
	"quizClashClient/internal/types/quiz"
	"quizClashClient/internal/types/user"
)

// ErrorCode identifies the domain errors the QuizClash backend can return.
type ErrorCode string

const (
	CodeAlreadyFriends    ErrorCode = "already_friends"
	CodeAlreadyPending    ErrorCode = "already_pending"
	CodeSelfRequest       ErrorCode = "self_request"
	CodeNotFound          ErrorCode = "not_found"
	CodeNotAuthorized     ErrorCode = "not_authorized"
	CodeWrongState        ErrorCode = "wrong_state"
	CodeInvalidSubmission ErrorCode = "invalid_submission"
)

// APIError is a domain rejection from the backend. The operation definitely
// did not happen.
type APIError struct {
	Code    ErrorCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend rejected: %s (%s)", e.Message, e.Code)
}

// NetworkError is a transport or timeout failure. The outcome of the
// operation is unknown; callers must reconcile via a subsequent read rather
// than assume success or failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// LeaderboardPage is the backend's friends-leaderboard read model: raw score
// rows for the viewer's friend circle (viewer included) plus the viewer's
// rank in the backend's own ordering, used when the viewer falls outside the
// requested window.
type LeaderboardPage struct {
	Profiles        []*profile.UserScoreProfile `json:"profiles"`
	CurrentUserRank int                         `json:"current_user_rank"`
}

// FriendshipStatusResult mirrors checkFriendshipStatus: the pair's status
// ("none" when no active friendship exists) and the friendship ID when one
// does.
type FriendshipStatusResult struct {
	Status       string     `json:"status"`
	FriendshipID *uuid.UUID `json:"friendship_id,omitempty"`
}

// Client is the contract the engine assumes of the remote QuizClash backend.
// All operations may additionally fail with *NetworkError.
type Client interface {
	SendFriendRequest(ctx context.Context, targetUserID uuid.UUID) (uuid.UUID, error)
	RespondToFriendRequest(ctx context.Context, requestID uuid.UUID, accept bool) (*friendship.Friendship, error)
	CancelFriendRequest(ctx context.Context, requestID uuid.UUID) error
	Unfriend(ctx context.Context, friendUserID uuid.UUID) error

	GetFriends(ctx context.Context) ([]*friendship.Friend, error)
	GetPendingIncoming(ctx context.Context) ([]*friendship.FriendRequest, error)
	GetPendingOutgoing(ctx context.Context) ([]*friendship.FriendRequest, error)
	GetFriendshipStats(ctx context.Context) (*friendship.FriendshipStats, error)
	CheckFriendshipStatus(ctx context.Context, targetUserID uuid.UUID) (*FriendshipStatusResult, error)

	GetFriendsLeaderboard(ctx context.Context, limit int) (*LeaderboardPage, error)
	SubmitQuizResult(ctx context.Context, result *quiz.AttemptResult) (*profile.UserScoreProfile, error)

	SearchUsers(ctx context.Context, query string) ([]*user.User, error)
	Ping(ctx context.Context) error
}
