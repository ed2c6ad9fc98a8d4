package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

// fakeStore is an in-memory store.Store for exercising the services
// without a backing database. Individual operations can be made to fail
// by setting the matching err field.
type fakeStore struct {
	users       map[uuid.UUID]*models.User
	requests    map[uuid.UUID]*models.FriendRequest
	groups      map[uuid.UUID]*models.Group
	invitations map[uuid.UUID]*models.GroupInvitation

	createUserErr error
	listUsersErr  error
	watchErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[uuid.UUID]*models.User),
		requests:    make(map[uuid.UUID]*models.FriendRequest),
		groups:      make(map[uuid.UUID]*models.Group),
		invitations: make(map[uuid.UUID]*models.GroupInvitation),
	}
}

func (f *fakeStore) addUser(username string) *models.User {
	u := &models.User{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: username,
		CreatedAt:   time.Now(),
		LastSeen:    time.Now(),
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addFriendship(a, b uuid.UUID) *models.FriendRequest {
	fr := &models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   a,
		ReceiverID: b,
		Status:     models.StatusAccepted,
		CreatedAt:  time.Now(),
	}
	f.requests[fr.ID] = fr
	return fr
}

func (f *fakeStore) CreateUser(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if f.createUserErr != nil {
		return nil, f.createUserErr
	}
	for _, u := range f.users {
		if u.Username == params.Username {
			return nil, store.ErrDuplicateUsername
		}
	}
	u := &models.User{
		ID:          uuid.New(),
		Username:    params.Username,
		DisplayName: params.DisplayName,
		Email:       params.Email,
		Phone:       params.Phone,
		CreatedAt:   time.Now(),
		LastSeen:    time.Now(),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	for _, u := range f.users {
		if u.Phone != nil && *u.Phone == phone {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if f.listUsersErr != nil {
		return nil, f.listUsersErr
	}
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, id uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if params.Username != nil {
		for otherID, other := range f.users {
			if otherID != id && other.Username == *params.Username {
				return nil, store.ErrDuplicateUsername
			}
		}
		u.Username = *params.Username
	}
	if params.DisplayName != nil {
		u.DisplayName = *params.DisplayName
	}
	if params.Email != nil {
		u.Email = params.Email
	}
	if params.Phone != nil {
		u.Phone = params.Phone
	}
	u.LastSeen = time.Now()
	copied := *u
	return &copied, nil
}

func (f *fakeStore) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.LastSeen = time.Now()
	return nil
}

func (f *fakeStore) CreateFriendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	for _, fr := range f.requests {
		if fr.Status == models.StatusPending && fr.Involves(senderID) && fr.Involves(receiverID) {
			return nil, store.ErrDuplicatePending
		}
	}
	fr := &models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.StatusPending,
		CreatedAt:  time.Now(),
	}
	f.requests[fr.ID] = fr
	copied := *fr
	return &copied, nil
}

func (f *fakeStore) FriendRequestByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	fr, ok := f.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *fr
	return &copied, nil
}

func (f *fakeStore) SettleFriendRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus) (*models.FriendRequest, error) {
	fr, ok := f.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if fr.Status != models.StatusPending {
		return nil, store.ErrNotPending
	}
	fr.Status = status
	copied := *fr
	return &copied, nil
}

func (f *fakeStore) AcceptedFriendRequestsInvolving(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	var out []models.FriendRequest
	for _, fr := range f.requests {
		if fr.Status == models.StatusAccepted && fr.Involves(userID) {
			out = append(out, *fr)
		}
	}
	return out, nil
}

func (f *fakeStore) PendingFriendRequestsFor(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	var out []models.FriendRequest
	for _, fr := range f.requests {
		if fr.Status == models.StatusPending && fr.ReceiverID == receiverID {
			out = append(out, *fr)
		}
	}
	return out, nil
}

func (f *fakeStore) HasPendingFriendRequestBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	for _, fr := range f.requests {
		if fr.Status == models.StatusPending && fr.Involves(a) && fr.Involves(b) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateGroup(ctx context.Context, name string, creatorID uuid.UUID) (*models.Group, error) {
	g := &models.Group{
		ID:        uuid.New(),
		Name:      name,
		CreatorID: creatorID,
		MemberIDs: []uuid.UUID{creatorID},
		CreatedAt: time.Now(),
	}
	f.groups[g.ID] = g
	copied := *g
	return &copied, nil
}

func (f *fakeStore) GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *g
	copied.MemberIDs = append([]uuid.UUID(nil), g.MemberIDs...)
	return &copied, nil
}

func (f *fakeStore) GroupsByMember(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var out []models.Group
	for _, g := range f.groups {
		if g.HasMember(userID) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeStore) GroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Group, error) {
	out := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		if g, ok := f.groups[id]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeStore) AddGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	g, ok := f.groups[groupID]
	if !ok {
		return store.ErrNotFound
	}
	if !g.HasMember(userID) {
		g.MemberIDs = append(g.MemberIDs, userID)
	}
	return nil
}

func (f *fakeStore) RemoveGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	g, ok := f.groups[groupID]
	if !ok {
		return store.ErrNotFound
	}
	kept := g.MemberIDs[:0]
	for _, id := range g.MemberIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	g.MemberIDs = kept
	return nil
}

func (f *fakeStore) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	if _, ok := f.groups[groupID]; !ok {
		return store.ErrNotFound
	}
	delete(f.groups, groupID)
	for id, inv := range f.invitations {
		if inv.GroupID == groupID {
			delete(f.invitations, id)
		}
	}
	return nil
}

func (f *fakeStore) CreateInvitation(ctx context.Context, groupID, inviterID, inviteeID uuid.UUID) (*models.GroupInvitation, error) {
	if _, ok := f.groups[groupID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, inv := range f.invitations {
		if inv.Status == models.StatusPending && inv.GroupID == groupID && inv.InviteeID == inviteeID {
			return nil, store.ErrDuplicatePending
		}
	}
	inv := &models.GroupInvitation{
		ID:        uuid.New(),
		GroupID:   groupID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}
	f.invitations[inv.ID] = inv
	copied := *inv
	return &copied, nil
}

func (f *fakeStore) InvitationByID(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	inv, ok := f.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeStore) AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	inv, ok := f.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if inv.Status != models.StatusPending {
		return nil, store.ErrNotPending
	}
	inv.Status = models.StatusAccepted
	if err := f.AddGroupMember(ctx, inv.GroupID, inv.InviteeID); err != nil {
		return nil, err
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeStore) DeclineInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	inv, ok := f.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if inv.Status != models.StatusPending {
		return nil, store.ErrNotPending
	}
	inv.Status = models.StatusDeclined
	copied := *inv
	return &copied, nil
}

func (f *fakeStore) PendingInvitationsFor(ctx context.Context, inviteeID uuid.UUID) ([]models.GroupInvitation, error) {
	var out []models.GroupInvitation
	for _, inv := range f.invitations {
		if inv.Status == models.StatusPending && inv.InviteeID == inviteeID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeStore) PendingInvitationsForGroup(ctx context.Context, groupID uuid.UUID) ([]models.GroupInvitation, error) {
	var out []models.GroupInvitation
	for _, inv := range f.invitations {
		if inv.Status == models.StatusPending && inv.GroupID == groupID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeStore) HasPendingInvitation(ctx context.Context, groupID, inviteeID uuid.UUID) (bool, error) {
	for _, inv := range f.invitations {
		if inv.Status == models.StatusPending && inv.GroupID == groupID && inv.InviteeID == inviteeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Watch(ctx context.Context, q store.Query) (*store.Subscription, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	ch := make(chan store.Snapshot)
	return store.NewSubscription(ch, func() { close(ch) }), nil
}

func (f *fakeStore) Close() error { return nil }
