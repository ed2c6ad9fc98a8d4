package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

var (
	ErrCannotFriendSelf       = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends         = errors.New("already friends")
	ErrDuplicateFriendRequest = errors.New("a pending friend request already exists")
	ErrRequestNotFound        = errors.New("friend request not found")
	ErrNotReceiver            = errors.New("only the receiver can respond to a friend request")
	ErrAlreadySettled         = errors.New("friend request already settled")
)

// FriendService owns the friend-request lifecycle and the friends list
// derived from accepted requests.
type FriendService struct {
	store store.Store
}

func NewFriendService(st store.Store) *FriendService {
	return &FriendService{store: st}
}

// Send creates a pending request from sender to receiver. A request in
// either direction between the pair blocks a new one, as does an existing
// accepted friendship.
func (s *FriendService) Send(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrCannotFriendSelf
	}

	if _, err := s.store.UserByID(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("check receiver: %w", err)
	}

	accepted, err := s.store.AcceptedFriendRequestsInvolving(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("check friendship: %w", err)
	}
	for _, fr := range accepted {
		if fr.Involves(receiverID) {
			return nil, ErrAlreadyFriends
		}
	}

	pending, err := s.store.HasPendingFriendRequestBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("check pending: %w", err)
	}
	if pending {
		return nil, ErrDuplicateFriendRequest
	}

	fr, err := s.store.CreateFriendRequest(ctx, senderID, receiverID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePending) {
			return nil, ErrDuplicateFriendRequest
		}
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return fr, nil
}

// Respond settles a pending request. Only the receiver may respond, and a
// settled request cannot be settled again.
func (s *FriendService) Respond(ctx context.Context, requestID, responderID uuid.UUID, accept bool) (*models.FriendRequest, error) {
	fr, err := s.store.FriendRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	if fr.ReceiverID != responderID {
		return nil, ErrNotReceiver
	}
	if fr.Status.Terminal() {
		return nil, ErrAlreadySettled
	}

	status := models.StatusDeclined
	if accept {
		status = models.StatusAccepted
	}

	settled, err := s.store.SettleFriendRequest(ctx, requestID, status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotPending):
			return nil, ErrAlreadySettled
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("settle friend request: %w", err)
	}
	return settled, nil
}

// ListFriends resolves accepted requests involving the user into the users
// on the other side, sorted by username.
func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	accepted, err := s.store.AcceptedFriendRequestsInvolving(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accepted requests: %w", err)
	}

	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(accepted))
	for _, fr := range accepted {
		other := fr.OtherParty(userID)
		if other == uuid.Nil || seen[other] {
			continue
		}
		seen[other] = true
		ids = append(ids, other)
	}
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	friends, err := s.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve friends: %w", err)
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].Username < friends[j].Username })
	return friends, nil
}

// ListPendingIncoming returns pending requests addressed to the user,
// decorated with the sender's display details.
func (s *FriendService) ListPendingIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithSender, error) {
	pending, err := s.store.PendingFriendRequestsFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return s.decorateWithSenders(ctx, pending)
}

func (s *FriendService) decorateWithSenders(ctx context.Context, requests []models.FriendRequest) ([]models.FriendRequestWithSender, error) {
	if len(requests) == 0 {
		return []models.FriendRequestWithSender{}, nil
	}

	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(requests))
	for _, fr := range requests {
		if !seen[fr.SenderID] {
			seen[fr.SenderID] = true
			ids = append(ids, fr.SenderID)
		}
	}

	senders, err := s.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve senders: %w", err)
	}
	byID := make(map[uuid.UUID]models.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}

	decorated := make([]models.FriendRequestWithSender, 0, len(requests))
	for _, fr := range requests {
		sender, ok := byID[fr.SenderID]
		if !ok {
			// Sender row is gone; skip rather than surface a hollow entry.
			continue
		}
		decorated = append(decorated, models.FriendRequestWithSender{
			FriendRequest:     fr,
			SenderUsername:    sender.Username,
			SenderDisplayName: sender.DisplayName,
		})
	}
	return decorated, nil
}
