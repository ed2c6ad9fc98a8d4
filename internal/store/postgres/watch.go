package postgres

import (
	"context"
	"fmt"

	"github.com/HammerMeetNail/splitsync/internal/store"
)

// Watch subscribes to the query's collection channel and re-runs the query
// per notification. Snapshots are therefore always full result sets; a
// subscription never patches state from the message payload.
func (s *Store) Watch(ctx context.Context, q store.Query) (*store.Subscription, error) {
	collection := q.Collection()
	if collection == "" {
		return nil, fmt.Errorf("unsupported query kind %q", q.Kind)
	}
	if s.bus == nil {
		return nil, fmt.Errorf("watch requires a change bus")
	}

	msgs, err := s.bus.Subscribe(ctx, channelFor(collection))
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w: %v", collection, store.ErrUnavailable, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	ch := make(chan store.Snapshot, 1)

	go s.watchLoop(watchCtx, q, msgs, ch)

	return store.NewSubscription(ch, func() {
		cancel()
		_ = msgs.Close()
	}), nil
}

func (s *Store) watchLoop(ctx context.Context, q store.Query, msgs Messages, ch chan<- store.Snapshot) {
	defer close(ch)

	emit := func() bool {
		snap, err := s.runQuery(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			// Keep the previous snapshot; the next notification retries.
			s.log.Warn("Snapshot query failed", map[string]interface{}{
				"kind":  string(q.Kind),
				"error": err.Error(),
			})
			return true
		}
		select {
		case ch <- *snap:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs.C():
			if !ok {
				return
			}
			if !emit() {
				return
			}
		}
	}
}

func (s *Store) runQuery(ctx context.Context, q store.Query) (*store.Snapshot, error) {
	snap := &store.Snapshot{Query: q}
	var err error

	switch q.Kind {
	case store.QueryAcceptedRequestsInvolving:
		snap.FriendRequests, err = s.AcceptedFriendRequestsInvolving(ctx, q.UserID)
	case store.QueryPendingRequestsFor:
		snap.FriendRequests, err = s.PendingFriendRequestsFor(ctx, q.UserID)
	case store.QueryGroupsWithMember:
		snap.Groups, err = s.GroupsByMember(ctx, q.UserID)
	case store.QueryPendingInvitationsFor:
		snap.Invitations, err = s.PendingInvitationsFor(ctx, q.UserID)
	default:
		return nil, fmt.Errorf("unsupported query kind %q", q.Kind)
	}

	if err != nil {
		return nil, err
	}
	return snap, nil
}
