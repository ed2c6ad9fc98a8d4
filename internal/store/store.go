// Package store defines the authoritative-store contract shared by the
// remote (PostgreSQL + Redis change feed) and local (SQLite) backends. The
// ledgers depend only on this interface, never on a concrete store.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicatePending is returned when a store-level uniqueness guard
	// rejects a second pending request or invitation for the same pair.
	ErrDuplicatePending = errors.New("pending record already exists")
	// ErrDuplicateUsername is returned when the store's username uniqueness
	// constraint rejects a create or update.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotPending is returned when settling a request that has already
	// reached a terminal status.
	ErrNotPending = errors.New("record is not pending")
	// ErrUnavailable wraps transport failures against the remote store.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the full contract: typed reads and writes over the four
// collections plus change subscriptions.
type Store interface {
	UserStore
	FriendRequestStore
	GroupStore
	Watcher

	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByUsername is a case-sensitive exact match.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UserByPhone(ctx context.Context, phone string) (*models.User, error)
	// UsersByIDs returns the users that exist, in unspecified order. An
	// empty input yields an empty slice, never an error.
	UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	// ListUsers returns the full directory. Callers that need partial-match
	// search filter this listing themselves; the store offers exact lookups
	// only.
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID) error
}

type FriendRequestStore interface {
	CreateFriendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error)
	FriendRequestByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	// SettleFriendRequest transitions pending -> status. It fails with
	// ErrNotPending when the request has already settled.
	SettleFriendRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus) (*models.FriendRequest, error)
	AcceptedFriendRequestsInvolving(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	PendingFriendRequestsFor(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error)
	// HasPendingFriendRequestBetween checks both directions of the pair.
	HasPendingFriendRequestBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type GroupStore interface {
	CreateGroup(ctx context.Context, name string, creatorID uuid.UUID) (*models.Group, error)
	GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	GroupsByMember(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	GroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Group, error)
	// AddGroupMember is a set union: adding an existing member is a no-op.
	AddGroupMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveGroupMember(ctx context.Context, groupID, userID uuid.UUID) error
	// DeleteGroup removes the group and cascades its invitations.
	DeleteGroup(ctx context.Context, groupID uuid.UUID) error

	CreateInvitation(ctx context.Context, groupID, inviterID, inviteeID uuid.UUID) (*models.GroupInvitation, error)
	InvitationByID(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error)
	// AcceptInvitation settles the invitation and adds the invitee to the
	// group in one transaction from the caller's perspective.
	AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error)
	DeclineInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error)
	PendingInvitationsFor(ctx context.Context, inviteeID uuid.UUID) ([]models.GroupInvitation, error)
	PendingInvitationsForGroup(ctx context.Context, groupID uuid.UUID) ([]models.GroupInvitation, error)
	HasPendingInvitation(ctx context.Context, groupID, inviteeID uuid.UUID) (bool, error)
}
