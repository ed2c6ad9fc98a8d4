package models

import (
	"time"

	"github.com/google/uuid"
)

// FriendRequest is the stored half of the social graph. The friendship edge
// itself is never stored: two users are friends iff a request between them
// has status accepted, in either direction.
type FriendRequest struct {
	ID         uuid.UUID     `json:"id"`
	SenderID   uuid.UUID     `json:"sender_id"`
	ReceiverID uuid.UUID     `json:"receiver_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Involves reports whether userID is either end of the request.
func (r FriendRequest) Involves(userID uuid.UUID) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// OtherParty returns the opposite end of the request from userID.
func (r FriendRequest) OtherParty(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

type FriendRequestWithSender struct {
	FriendRequest
	SenderUsername    string `json:"sender_username"`
	SenderDisplayName string `json:"sender_display_name"`
}
