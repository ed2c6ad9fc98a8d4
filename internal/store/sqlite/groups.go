package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

const (
	groupColumns      = "id, name, creator_id, created_at"
	invitationColumns = "id, group_id, inviter_id, invitee_id, status, created_at"
)

func scanGroup(row rowScanner) (*models.Group, error) {
	var (
		g             models.Group
		id, creatorID string
		createdAt     int64
	)
	if err := row.Scan(&id, &g.Name, &creatorID, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if g.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if g.CreatorID, err = uuid.Parse(creatorID); err != nil {
		return nil, err
	}
	g.CreatedAt = fromMillis(createdAt)
	return &g, nil
}

func scanInvitation(row rowScanner) (*models.GroupInvitation, error) {
	var (
		inv                               models.GroupInvitation
		id, groupID, inviterID, inviteeID string
		createdAt                         int64
	)
	if err := row.Scan(&id, &groupID, &inviterID, &inviteeID, &inv.Status, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if inv.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if inv.GroupID, err = uuid.Parse(groupID); err != nil {
		return nil, err
	}
	if inv.InviterID, err = uuid.Parse(inviterID); err != nil {
		return nil, err
	}
	if inv.InviteeID, err = uuid.Parse(inviteeID); err != nil {
		return nil, err
	}
	inv.CreatedAt = fromMillis(createdAt)
	return &inv, nil
}

func (s *Store) CreateGroup(ctx context.Context, name string, creatorID uuid.UUID) (*models.Group, error) {
	group := &models.Group{
		ID:        uuid.New(),
		Name:      name,
		CreatorID: creatorID,
		MemberIDs: []uuid.UUID{creatorID},
		CreatedAt: now(),
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, name, creator_id, created_at) VALUES (?, ?, ?, ?)`,
			group.ID.String(), group.Name, creatorID.String(), toMillis(group.CreatedAt),
		); err != nil {
			return wrapErr("creating group", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
			group.ID.String(), creatorID.String(),
		); err != nil {
			return wrapErr("adding creator membership", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.notify(store.CollectionGroups)
	return group, nil
}

func (s *Store) GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group, err := scanGroup(s.db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = ?", id.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("getting group", err)
	}
	if group.MemberIDs, err = s.memberIDs(ctx, group.ID); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Store) memberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM group_members WHERE group_id = ?", groupID.String(),
	)
	if err != nil {
		return nil, wrapErr("listing group members", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapErr("scanning group member", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, wrapErr("parsing group member id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading group members", err)
	}
	return ids, nil
}

func (s *Store) GroupsByMember(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.creator_id, g.created_at
		 FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.created_at DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, wrapErr("listing groups by member", err)
	}
	defer rows.Close()

	return s.collectGroups(ctx, rows)
}

func (s *Store) GroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Group, error) {
	if len(ids) == 0 {
		return []models.Group{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id IN ("+strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return nil, wrapErr("listing groups by ids", err)
	}
	defer rows.Close()

	return s.collectGroups(ctx, rows)
}

func (s *Store) collectGroups(ctx context.Context, rows *sql.Rows) ([]models.Group, error) {
	groups := []models.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, wrapErr("scanning group", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading groups", err)
	}
	for i := range groups {
		members, err := s.memberIDs(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].MemberIDs = members
	}
	return groups, nil
}

// AddGroupMember inserts the membership row if absent; re-adding an
// existing member is a no-op, which is what makes concurrent invitation
// accepts converge.
func (s *Store) AddGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := s.GroupByID(ctx, groupID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`,
		groupID.String(), userID.String(),
	)
	if err != nil {
		return wrapErr("adding group member", err)
	}

	s.notifier.notify(store.CollectionGroups)
	return nil
}

func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := s.GroupByID(ctx, groupID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID.String(), userID.String(),
	)
	if err != nil {
		return wrapErr("removing group member", err)
	}

	s.notifier.notify(store.CollectionGroups)
	return nil
}

// DeleteGroup removes the group; memberships and invitations follow via
// foreign-key cascade in the same statement.
func (s *Store) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM groups WHERE id = ?`, groupID.String(),
	)
	if err != nil {
		return wrapErr("deleting group", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("deleting group", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	s.notifier.notify(store.CollectionGroups)
	s.notifier.notify(store.CollectionGroupInvitations)
	return nil
}

func (s *Store) CreateInvitation(ctx context.Context, groupID, inviterID, inviteeID uuid.UUID) (*models.GroupInvitation, error) {
	inv := &models.GroupInvitation{
		ID:        uuid.New(),
		GroupID:   groupID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    models.StatusPending,
		CreatedAt: now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_invitations (id, group_id, inviter_id, invitee_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		inv.ID.String(), groupID.String(), inviterID.String(), inviteeID.String(),
		inv.Status, toMillis(inv.CreatedAt),
	)
	if err != nil {
		return nil, wrapErr("creating invitation", err)
	}

	s.notifier.notify(store.CollectionGroupInvitations)
	return inv, nil
}

func (s *Store) InvitationByID(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	inv, err := scanInvitation(s.db.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM group_invitations WHERE id = ?", id.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("getting invitation", err)
	}
	return inv, nil
}

func (s *Store) AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE group_invitations SET status = 'accepted' WHERE id = ? AND status = 'pending'`,
			id.String(),
		)
		if err != nil {
			return wrapErr("settling invitation", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return wrapErr("settling invitation", err)
		}
		if affected == 0 {
			var status string
			err := tx.QueryRowContext(ctx,
				"SELECT status FROM group_invitations WHERE id = ?", id.String(),
			).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			if err != nil {
				return wrapErr("checking invitation", err)
			}
			return store.ErrNotPending
		}

		var rawGroupID, rawInviteeID string
		if err := tx.QueryRowContext(ctx,
			"SELECT group_id, invitee_id FROM group_invitations WHERE id = ?", id.String(),
		).Scan(&rawGroupID, &rawInviteeID); err != nil {
			return wrapErr("reading accepted invitation", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`,
			rawGroupID, rawInviteeID,
		); err != nil {
			return wrapErr("adding accepted member", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.notify(store.CollectionGroupInvitations)
	s.notifier.notify(store.CollectionGroups)
	return s.InvitationByID(ctx, id)
}

func (s *Store) DeclineInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE group_invitations SET status = 'declined' WHERE id = ? AND status = 'pending'`,
		id.String(),
	)
	if err != nil {
		return nil, wrapErr("declining invitation", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrapErr("declining invitation", err)
	}
	if affected == 0 {
		if _, getErr := s.InvitationByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrNotPending
	}

	s.notifier.notify(store.CollectionGroupInvitations)
	return s.InvitationByID(ctx, id)
}

func (s *Store) PendingInvitationsFor(ctx context.Context, inviteeID uuid.UUID) ([]models.GroupInvitation, error) {
	return s.pendingInvitations(ctx, "invitee_id = ?", inviteeID.String())
}

func (s *Store) PendingInvitationsForGroup(ctx context.Context, groupID uuid.UUID) ([]models.GroupInvitation, error) {
	return s.pendingInvitations(ctx, "group_id = ?", groupID.String())
}

func (s *Store) pendingInvitations(ctx context.Context, cond string, arg any) ([]models.GroupInvitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM group_invitations
		 WHERE status = 'pending' AND `+cond+`
		 ORDER BY created_at DESC`,
		arg,
	)
	if err != nil {
		return nil, wrapErr("listing pending invitations", err)
	}
	defer rows.Close()

	invitations := []models.GroupInvitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, wrapErr("scanning invitation", err)
		}
		invitations = append(invitations, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading invitations", err)
	}
	return invitations, nil
}

func (s *Store) HasPendingInvitation(ctx context.Context, groupID, inviteeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM group_invitations
			WHERE status = 'pending' AND group_id = ? AND invitee_id = ?
		)`,
		groupID.String(), inviteeID.String(),
	).Scan(&exists)
	if err != nil {
		return false, wrapErr("checking pending invitation", err)
	}
	return exists, nil
}
