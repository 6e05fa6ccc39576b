package user

import (
	"time"

	"github.com/google/uuid"
)

// User is owned by the QuizClash backend and its identity provider.
// The client references users and never mutates them locally.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ImageURL  *string   `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
