package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

const (
	groupColumns      = "id, name, creator_id, member_ids, created_at"
	invitationColumns = "id, group_id, inviter_id, invitee_id, status, created_at"
)

func scanGroup(row Row, g *models.Group) error {
	return row.Scan(&g.ID, &g.Name, &g.CreatorID, &g.MemberIDs, &g.CreatedAt)
}

func scanInvitation(row Row, inv *models.GroupInvitation) error {
	return row.Scan(&inv.ID, &inv.GroupID, &inv.InviterID, &inv.InviteeID, &inv.Status, &inv.CreatedAt)
}

func (s *Store) CreateGroup(ctx context.Context, name string, creatorID uuid.UUID) (*models.Group, error) {
	group := &models.Group{}
	err := scanGroup(s.db.QueryRow(ctx,
		`INSERT INTO groups (name, creator_id, member_ids)
		 VALUES ($1, $2, ARRAY[$2]::uuid[])
		 RETURNING `+groupColumns,
		name, creatorID,
	), group)
	if err != nil {
		return nil, wrapErr("creating group", err)
	}

	s.publish(ctx, store.CollectionGroups, group.ID.String())
	return group, nil
}

func (s *Store) GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group := &models.Group{}
	err := scanGroup(s.db.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = $1", id,
	), group)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("getting group", err)
	}
	return group, nil
}

func (s *Store) GroupsByMember(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+groupColumns+` FROM groups
		 WHERE member_ids @> ARRAY[$1]::uuid[]
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapErr("listing groups by member", err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

func (s *Store) GroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Group, error) {
	if len(ids) == 0 {
		return []models.Group{}, nil
	}

	rows, err := s.db.Query(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = ANY($1)", ids,
	)
	if err != nil {
		return nil, wrapErr("listing groups by ids", err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

func collectGroups(rows Rows) ([]models.Group, error) {
	groups := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := scanGroup(rows, &g); err != nil {
			return nil, wrapErr("scanning group", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading groups", err)
	}
	return groups, nil
}

// AddGroupMember appends only when the id is absent, so concurrent accepts
// for the same group converge without locking.
func (s *Store) AddGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.addMember(ctx, s.db, groupID, userID)
}

func (s *Store) addMember(ctx context.Context, q DBConn, groupID, userID uuid.UUID) error {
	tag, err := q.Exec(ctx,
		`UPDATE groups SET member_ids = array_append(member_ids, $2)
		 WHERE id = $1 AND NOT (member_ids @> ARRAY[$2]::uuid[])`,
		groupID, userID,
	)
	if err != nil {
		return wrapErr("adding group member", err)
	}
	if tag.RowsAffected() == 0 {
		// Already a member, or the group is gone.
		if _, err := s.GroupByID(ctx, groupID); err != nil {
			return err
		}
		return nil
	}

	s.publish(ctx, store.CollectionGroups, groupID.String())
	return nil
}

func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE groups SET member_ids = array_remove(member_ids, $2) WHERE id = $1`,
		groupID, userID,
	)
	if err != nil {
		return wrapErr("removing group member", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.publish(ctx, store.CollectionGroups, groupID.String())
	return nil
}

// DeleteGroup removes the group; the invitation cascade rides the foreign
// key, so the two deletions commit together.
func (s *Store) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return wrapErr("deleting group", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.publish(ctx, store.CollectionGroups, groupID.String())
	s.publish(ctx, store.CollectionGroupInvitations, groupID.String())
	return nil
}

func (s *Store) CreateInvitation(ctx context.Context, groupID, inviterID, inviteeID uuid.UUID) (*models.GroupInvitation, error) {
	inv := &models.GroupInvitation{}
	err := scanInvitation(s.db.QueryRow(ctx,
		`INSERT INTO group_invitations (group_id, inviter_id, invitee_id, status)
		 VALUES ($1, $2, $3, 'pending')
		 RETURNING `+invitationColumns,
		groupID, inviterID, inviteeID,
	), inv)
	if err != nil {
		return nil, wrapErr("creating invitation", err)
	}

	s.publish(ctx, store.CollectionGroupInvitations, inv.ID.String())
	return inv, nil
}

func (s *Store) InvitationByID(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	inv := &models.GroupInvitation{}
	err := scanInvitation(s.db.QueryRow(ctx,
		"SELECT "+invitationColumns+" FROM group_invitations WHERE id = $1", id,
	), inv)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("getting invitation", err)
	}
	return inv, nil
}

// AcceptInvitation settles the invitation and joins the invitee to the
// group inside one transaction.
func (s *Store) AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, wrapErr("beginning invitation accept", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	inv := &models.GroupInvitation{}
	err = scanInvitation(tx.QueryRow(ctx,
		`UPDATE group_invitations SET status = 'accepted'
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+invitationColumns,
		id,
	), inv)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.InvitationByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrNotPending
	}
	if err != nil {
		return nil, wrapErr("settling invitation", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE groups SET member_ids = array_append(member_ids, $2)
		 WHERE id = $1 AND NOT (member_ids @> ARRAY[$2]::uuid[])`,
		inv.GroupID, inv.InviteeID,
	)
	if err != nil {
		return nil, wrapErr("adding accepted member", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapErr("committing invitation accept", err)
	}
	committed = true

	s.publish(ctx, store.CollectionGroupInvitations, inv.ID.String())
	s.publish(ctx, store.CollectionGroups, inv.GroupID.String())
	return inv, nil
}

func (s *Store) DeclineInvitation(ctx context.Context, id uuid.UUID) (*models.GroupInvitation, error) {
	inv := &models.GroupInvitation{}
	err := scanInvitation(s.db.QueryRow(ctx,
		`UPDATE group_invitations SET status = 'declined'
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+invitationColumns,
		id,
	), inv)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.InvitationByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrNotPending
	}
	if err != nil {
		return nil, wrapErr("declining invitation", err)
	}

	s.publish(ctx, store.CollectionGroupInvitations, inv.ID.String())
	return inv, nil
}

func (s *Store) PendingInvitationsFor(ctx context.Context, inviteeID uuid.UUID) ([]models.GroupInvitation, error) {
	return s.pendingInvitations(ctx, "invitee_id = $1", inviteeID)
}

func (s *Store) PendingInvitationsForGroup(ctx context.Context, groupID uuid.UUID) ([]models.GroupInvitation, error) {
	return s.pendingInvitations(ctx, "group_id = $1", groupID)
}

func (s *Store) pendingInvitations(ctx context.Context, cond string, arg any) ([]models.GroupInvitation, error) {
	rows, err := s.db.Query(ctx,
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
		var inv models.GroupInvitation
		if err := scanInvitation(rows, &inv); err != nil {
			return nil, wrapErr("scanning invitation", err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading invitations", err)
	}
	return invitations, nil
}

func (s *Store) HasPendingInvitation(ctx context.Context, groupID, inviteeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM group_invitations
			WHERE status = 'pending' AND group_id = $1 AND invitee_id = $2
		)`,
		groupID, inviteeID,
	).Scan(&exists)
	if err != nil {
		return false, wrapErr("checking pending invitation", err)
	}
	return exists, nil
}
