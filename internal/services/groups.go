package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrInvalidGroupName    = errors.New("group name is required")
	ErrNotGroupMember      = errors.New("not a member of this group")
	ErrAlreadyMember       = errors.New("user is already a member of this group")
	ErrDuplicateInvitation = errors.New("a pending invitation already exists for this user")
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrNotInvitee          = errors.New("only the invitee can respond to an invitation")
	ErrNotCreator          = errors.New("only the group creator can do this")
	ErrCannotRemoveCreator = errors.New("the group creator cannot be removed")
	ErrCannotLeaveAsOwner  = errors.New("the creator must delete the group instead of leaving")
	ErrCannotInviteSelf    = errors.New("cannot invite yourself")
)

const groupNameMaxLen = 50

// GroupService owns groups, membership and the invitation lifecycle.
type GroupService struct {
	store   store.Store
	friends *FriendService
}

func NewGroupService(st store.Store, friends *FriendService) *GroupService {
	return &GroupService{store: st, friends: friends}
}

func (s *GroupService) Create(ctx context.Context, creatorID uuid.UUID, name string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > groupNameMaxLen {
		return nil, ErrInvalidGroupName
	}

	group, err := s.store.CreateGroup(ctx, name, creatorID)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

func (s *GroupService) ByID(ctx context.Context, groupID, viewerID uuid.UUID) (*models.Group, error) {
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	if !group.HasMember(viewerID) {
		return nil, ErrNotGroupMember
	}
	return group, nil
}

func (s *GroupService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	groups, err := s.store.GroupsByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Invite creates a pending invitation. Any member may invite; the invitee
// must not already be a member or hold a pending invitation.
func (s *GroupService) Invite(ctx context.Context, groupID, inviterID, inviteeID uuid.UUID) (*models.GroupInvitation, error) {
	if inviterID == inviteeID {
		return nil, ErrCannotInviteSelf
	}

	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	if !group.HasMember(inviterID) {
		return nil, ErrNotGroupMember
	}
	if group.HasMember(inviteeID) {
		return nil, ErrAlreadyMember
	}

	if _, err := s.store.UserByID(ctx, inviteeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("check invitee: %w", err)
	}

	pending, err := s.store.HasPendingInvitation(ctx, groupID, inviteeID)
	if err != nil {
		return nil, fmt.Errorf("check pending invitation: %w", err)
	}
	if pending {
		return nil, ErrDuplicateInvitation
	}

	inv, err := s.store.CreateInvitation(ctx, groupID, inviterID, inviteeID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicatePending):
			return nil, ErrDuplicateInvitation
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

// Respond settles a pending invitation. Accepting joins the invitee to the
// group in the same step.
func (s *GroupService) Respond(ctx context.Context, invitationID, responderID uuid.UUID, accept bool) (*models.GroupInvitation, error) {
	inv, err := s.store.InvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv.InviteeID != responderID {
		return nil, ErrNotInvitee
	}
	if inv.Status.Terminal() {
		return nil, ErrAlreadySettled
	}

	var settled *models.GroupInvitation
	if accept {
		settled, err = s.store.AcceptInvitation(ctx, invitationID)
	} else {
		settled, err = s.store.DeclineInvitation(ctx, invitationID)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotPending):
			return nil, ErrAlreadySettled
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("settle invitation: %w", err)
	}
	return settled, nil
}

// ListPendingInvitations returns pending invitations addressed to the user,
// decorated with group and inviter names. Invitations whose group has been
// deleted underfoot are dropped.
func (s *GroupService) ListPendingInvitations(ctx context.Context, userID uuid.UUID) ([]models.GroupInvitationWithGroup, error) {
	pending, err := s.store.PendingInvitationsFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	return s.decorateInvitations(ctx, pending)
}

func (s *GroupService) decorateInvitations(ctx context.Context, invitations []models.GroupInvitation) ([]models.GroupInvitationWithGroup, error) {
	if len(invitations) == 0 {
		return []models.GroupInvitationWithGroup{}, nil
	}

	groupSeen := make(map[uuid.UUID]bool)
	groupIDs := make([]uuid.UUID, 0, len(invitations))
	inviterSeen := make(map[uuid.UUID]bool)
	inviterIDs := make([]uuid.UUID, 0, len(invitations))
	for _, inv := range invitations {
		if !groupSeen[inv.GroupID] {
			groupSeen[inv.GroupID] = true
			groupIDs = append(groupIDs, inv.GroupID)
		}
		if !inviterSeen[inv.InviterID] {
			inviterSeen[inv.InviterID] = true
			inviterIDs = append(inviterIDs, inv.InviterID)
		}
	}

	groups, err := s.store.GroupsByIDs(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve groups: %w", err)
	}
	groupByID := make(map[uuid.UUID]models.Group, len(groups))
	for _, g := range groups {
		groupByID[g.ID] = g
	}

	inviters, err := s.store.UsersByIDs(ctx, inviterIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve inviters: %w", err)
	}
	inviterByID := make(map[uuid.UUID]models.User, len(inviters))
	for _, u := range inviters {
		inviterByID[u.ID] = u
	}

	decorated := make([]models.GroupInvitationWithGroup, 0, len(invitations))
	for _, inv := range invitations {
		group, ok := groupByID[inv.GroupID]
		if !ok {
			continue
		}
		item := models.GroupInvitationWithGroup{
			GroupInvitation: inv,
			GroupName:       group.Name,
		}
		if inviter, ok := inviterByID[inv.InviterID]; ok {
			item.InviterUsername = inviter.Username
		}
		decorated = append(decorated, item)
	}
	return decorated, nil
}

// RemoveMember removes a member from a group. Only the creator may remove
// members, and the creator cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, memberID uuid.UUID) error {
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("get group: %w", err)
	}
	if group.CreatorID != actorID {
		return ErrNotCreator
	}
	if memberID == group.CreatorID {
		return ErrCannotRemoveCreator
	}
	if !group.HasMember(memberID) {
		return ErrNotGroupMember
	}

	if err := s.store.RemoveGroupMember(ctx, groupID, memberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// Leave removes the caller from a group. The creator cannot leave; they
// delete the group instead.
func (s *GroupService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("get group: %w", err)
	}
	if group.CreatorID == userID {
		return ErrCannotLeaveAsOwner
	}
	if !group.HasMember(userID) {
		return ErrNotGroupMember
	}

	if err := s.store.RemoveGroupMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("leave group: %w", err)
	}
	return nil
}

// Delete removes a group and all its invitations. Creator only.
func (s *GroupService) Delete(ctx context.Context, groupID, actorID uuid.UUID) error {
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("get group: %w", err)
	}
	if group.CreatorID != actorID {
		return ErrNotCreator
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// AvailableInvitees lists the caller's friends who are not yet members of
// the group and have no pending invitation to it.
func (s *GroupService) AvailableInvitees(ctx context.Context, groupID, userID uuid.UUID) ([]models.User, error) {
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	if !group.HasMember(userID) {
		return nil, ErrNotGroupMember
	}

	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending, err := s.store.PendingInvitationsForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group invitations: %w", err)
	}
	invited := make(map[uuid.UUID]bool, len(pending))
	for _, inv := range pending {
		invited[inv.InviteeID] = true
	}

	available := make([]models.User, 0, len(friends))
	for _, friend := range friends {
		if group.HasMember(friend.ID) || invited[friend.ID] {
			continue
		}
		available = append(available, friend)
	}
	sort.Slice(available, func(i, j int) bool { return available[i].Username < available[j].Username })
	return available, nil
}
