package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeen    time.Time `json:"last_seen"`
}

type CreateUserParams struct {
	Username    string
	DisplayName string
	Email       *string
	Phone       *string
}

// UpdateProfileParams carries partial profile edits. Nil fields are left
// unchanged; only the owning user may apply them.
type UpdateProfileParams struct {
	Username    *string
	DisplayName *string
	Email       *string
	Phone       *string
}
