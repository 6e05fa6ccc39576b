package friendship

import (
	"time"

	"github.com/google/uuid"

	"quizClashClient/internal/types/user"
)

type FriendshipStatus string

const (
	FriendshipPending   FriendshipStatus = "pending"
	FriendshipAccepted  FriendshipStatus = "accepted"
	FriendshipDeclined  FriendshipStatus = "declined"
	FriendshipCancelled FriendshipStatus = "cancelled"
	FriendshipRemoved   FriendshipStatus = "removed"
)

// Active reports whether the status still blocks a new request between the
// same pair. Declined, cancelled and removed friendships do not.
func (s FriendshipStatus) Active() bool {
	return s == FriendshipPending || s == FriendshipAccepted
}

type Friendship struct {
	ID          uuid.UUID        `json:"id"`
	RequesterID uuid.UUID        `json:"requester_id"`
	AddresseeID uuid.UUID        `json:"addressee_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
}

// OtherParticipant returns the participant that is not userID.
func (f *Friendship) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// Involves reports whether userID is one of the two participants.
func (f *Friendship) Involves(userID uuid.UUID) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

type RequestDirection string

const (
	RequestIncoming RequestDirection = "incoming"
	RequestOutgoing RequestDirection = "outgoing"
)

// FriendRequest is a read-model projection of a pending friendship from the
// perspective of one participant.
type FriendRequest struct {
	FriendshipID uuid.UUID        `json:"friendship_id"`
	OtherUserID  uuid.UUID        `json:"other_user_id"`
	OtherUser    *user.User       `json:"other_user,omitempty"`
	Direction    RequestDirection `json:"direction"`
	CreatedAt    time.Time        `json:"created_at"`
}

type FriendshipStats struct {
	TotalFriends    int `json:"total_friends"`
	PendingIncoming int `json:"pending_incoming"`
	PendingOutgoing int `json:"pending_outgoing"`
}

// Friend is a backend read model: an accepted friendship joined with the
// other participant's display attributes.
type Friend struct {
	FriendshipID uuid.UUID  `json:"friendship_id"`
	User         user.User  `json:"user"`
	FriendsSince *time.Time `json:"friends_since,omitempty"`
}
