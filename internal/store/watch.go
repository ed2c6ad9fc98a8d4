package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
)

// Collection names the four replicated document sets. Change notifications
// are keyed by collection.
type Collection string

const (
	CollectionUsers            Collection = "users"
	CollectionFriendRequests   Collection = "friend_requests"
	CollectionGroups           Collection = "groups"
	CollectionGroupInvitations Collection = "group_invitations"
)

// QueryKind enumerates the live queries the application subscribes to.
type QueryKind string

const (
	// QueryAcceptedRequestsInvolving feeds the derived friends list.
	QueryAcceptedRequestsInvolving QueryKind = "accepted_requests_involving"
	QueryPendingRequestsFor        QueryKind = "pending_requests_for"
	QueryGroupsWithMember          QueryKind = "groups_with_member"
	QueryPendingInvitationsFor     QueryKind = "pending_invitations_for"
)

type Query struct {
	Kind   QueryKind
	UserID uuid.UUID
}

// Collection returns the collection whose writes can change this query's
// result set.
func (q Query) Collection() Collection {
	switch q.Kind {
	case QueryAcceptedRequestsInvolving, QueryPendingRequestsFor:
		return CollectionFriendRequests
	case QueryGroupsWithMember:
		return CollectionGroups
	case QueryPendingInvitationsFor:
		return CollectionGroupInvitations
	}
	return ""
}

// Snapshot carries the full current result set for one query. Exactly one
// of the slices is populated, matching the query kind.
type Snapshot struct {
	Query          Query
	FriendRequests []models.FriendRequest
	Groups         []models.Group
	Invitations    []models.GroupInvitation
}

// Watcher hands out live subscriptions. A subscription emits an initial
// snapshot and then one snapshot per relevant committed write. Ordering is
// monotonic within one subscription and unspecified across subscriptions.
type Watcher interface {
	Watch(ctx context.Context, q Query) (*Subscription, error)
}

// Subscription is a disposable resource: Unsubscribe stops delivery, closes
// C, and is safe to call any number of times.
type Subscription struct {
	C <-chan Snapshot

	once sync.Once
	stop func()
}

func NewSubscription(ch <-chan Snapshot, stop func()) *Subscription {
	return &Subscription{C: ch, stop: stop}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}
