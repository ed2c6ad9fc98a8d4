package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Group is an expense-sharing group. MemberIDs behaves as a set: the creator
// is always a member, and only the membership ledger mutates it.
type Group struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	CreatorID uuid.UUID   `json:"creator_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

func (g Group) HasMember(userID uuid.UUID) bool {
	return slices.Contains(g.MemberIDs, userID)
}

type GroupInvitation struct {
	ID        uuid.UUID     `json:"id"`
	GroupID   uuid.UUID     `json:"group_id"`
	InviterID uuid.UUID     `json:"inviter_id"`
	InviteeID uuid.UUID     `json:"invitee_id"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// GroupInvitationWithGroup decorates a pending invitation with the group
// fields list views need. Invitations whose group no longer resolves are
// dropped by the feed rather than surfaced with an empty name.
type GroupInvitationWithGroup struct {
	GroupInvitation
	GroupName       string `json:"group_name"`
	InviterUsername string `json:"inviter_username"`
}
