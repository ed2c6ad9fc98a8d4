package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/logging"
	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/services"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

// UpdateKind names which projection a feed update carries.
type UpdateKind string

const (
	UpdateFriends            UpdateKind = "friends"
	UpdatePendingRequests    UpdateKind = "pending_requests"
	UpdateGroups             UpdateKind = "groups"
	UpdatePendingInvitations UpdateKind = "pending_invitations"
)

// Update is one projected view change delivered on Feed.Updates. Only the
// field matching Kind is populated.
type Update struct {
	Kind               UpdateKind                        `json:"kind"`
	Friends            []models.User                     `json:"friends,omitempty"`
	PendingRequests    []models.FriendRequestWithSender  `json:"pendingRequests,omitempty"`
	Groups             []models.Group                    `json:"groups,omitempty"`
	PendingInvitations []models.GroupInvitationWithGroup `json:"pendingInvitations,omitempty"`
}

type snapshotMsg struct {
	generation int
	snapshot   store.Snapshot
}

type command struct {
	setUser *uuid.UUID
	closed  chan struct{}
}

// Feed subscribes to the store's change queries for one user and projects
// raw snapshots into the views the delivery surface sends out. A single
// owner goroutine mutates all feed state; callers talk to it through a
// command channel.
type Feed struct {
	store    store.Store
	friends  *services.FriendService
	groups   *services.GroupService
	log      *logging.Logger
	commands chan command
	updates  chan Update
	done     chan struct{}
}

func NewFeed(st store.Store, friends *services.FriendService, groups *services.GroupService, log *logging.Logger) *Feed {
	f := &Feed{
		store:    st,
		friends:  friends,
		groups:   groups,
		log:      log,
		commands: make(chan command),
		updates:  make(chan Update, 16),
		done:     make(chan struct{}),
	}
	go f.run()
	return f
}

// Updates delivers projected view changes. The channel is buffered; when
// the consumer falls behind, updates are dropped rather than blocking the
// feed, and a later snapshot supersedes anything lost.
func (f *Feed) Updates() <-chan Update {
	return f.updates
}

// SetUser switches the feed to a new user, tearing down any previous
// subscriptions. A nil user stops all subscriptions. Blocks until the
// switch has been applied.
func (f *Feed) SetUser(userID *uuid.UUID) {
	ack := make(chan struct{})
	select {
	case f.commands <- command{setUser: userID, closed: ack}:
		<-ack
	case <-f.done:
	}
}

// Close stops the feed. Safe to call more than once.
func (f *Feed) Close() {
	select {
	case f.commands <- command{closed: nil}:
	case <-f.done:
	}
}

func (f *Feed) run() {
	defer close(f.done)
	defer close(f.updates)

	var (
		generation int
		cancel     context.CancelFunc
		subs       []*store.Subscription
	)
	snapshots := make(chan snapshotMsg, 8)

	teardown := func() {
		if cancel != nil {
			cancel()
			cancel = nil
		}
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		subs = nil
	}
	defer teardown()

	for {
		select {
		case cmd := <-f.commands:
			if cmd.setUser == nil && cmd.closed == nil {
				return
			}
			teardown()
			generation++
			if cmd.setUser != nil {
				ctx, c := context.WithCancel(context.Background())
				cancel = c
				subs = f.subscribe(ctx, *cmd.setUser, generation, snapshots)
			}
			if cmd.closed != nil {
				close(cmd.closed)
			}

		case msg := <-snapshots:
			// Snapshots from a torn-down generation are stale.
			if msg.generation != generation {
				continue
			}
			f.project(msg.snapshot)
		}
	}
}

func (f *Feed) subscribe(ctx context.Context, userID uuid.UUID, generation int, snapshots chan<- snapshotMsg) []*store.Subscription {
	queries := []store.Query{
		{Kind: store.QueryAcceptedRequestsInvolving, UserID: userID},
		{Kind: store.QueryPendingRequestsFor, UserID: userID},
		{Kind: store.QueryGroupsWithMember, UserID: userID},
		{Kind: store.QueryPendingInvitationsFor, UserID: userID},
	}

	subs := make([]*store.Subscription, 0, len(queries))
	for _, q := range queries {
		sub, err := f.store.Watch(ctx, q)
		if err != nil {
			f.log.Error("Failed to subscribe to change feed", map[string]interface{}{
				"kind":  string(q.Kind),
				"error": err.Error(),
			})
			continue
		}
		subs = append(subs, sub)

		go func(sub *store.Subscription) {
			for snap := range sub.C {
				select {
				case snapshots <- snapshotMsg{generation: generation, snapshot: snap}:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	return subs
}

func (f *Feed) project(snap store.Snapshot) {
	ctx := context.Background()
	userID := snap.Query.UserID

	var (
		update Update
		err    error
	)

	switch snap.Query.Kind {
	case store.QueryAcceptedRequestsInvolving:
		update.Kind = UpdateFriends
		update.Friends, err = f.friends.ListFriends(ctx, userID)
	case store.QueryPendingRequestsFor:
		update.Kind = UpdatePendingRequests
		update.PendingRequests, err = f.friends.ListPendingIncoming(ctx, userID)
	case store.QueryGroupsWithMember:
		update.Kind = UpdateGroups
		update.Groups = snap.Groups
	case store.QueryPendingInvitationsFor:
		update.Kind = UpdatePendingInvitations
		update.PendingInvitations, err = f.groups.ListPendingInvitations(ctx, userID)
	default:
		return
	}

	if err != nil {
		f.log.Warn("Failed to project snapshot", map[string]interface{}{
			"kind":  string(snap.Query.Kind),
			"error": err.Error(),
		})
		return
	}

	select {
	case f.updates <- update:
	default:
		f.log.Warn("Dropping feed update, consumer is behind", map[string]interface{}{
			"kind": string(update.Kind),
		})
	}
}
