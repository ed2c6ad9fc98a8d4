package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

const friendRequestColumns = "id, sender_id, receiver_id, status, created_at"

func scanFriendRequest(row rowScanner) (*models.FriendRequest, error) {
	var (
		r                        models.FriendRequest
		id, senderID, receiverID string
		createdAt                int64
	)
	if err := row.Scan(&id, &senderID, &receiverID, &r.Status, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if r.SenderID, err = uuid.Parse(senderID); err != nil {
		return nil, err
	}
	if r.ReceiverID, err = uuid.Parse(receiverID); err != nil {
		return nil, err
	}
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

func (s *Store) CreateFriendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	req := &models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.StatusPending,
		CreatedAt:  now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		req.ID.String(), senderID.String(), receiverID.String(), req.Status, toMillis(req.CreatedAt),
	)
	if err != nil {
		return nil, wrapErr("creating friend request", err)
	}

	s.notifier.notify(store.CollectionFriendRequests)
	return req, nil
}

func (s *Store) FriendRequestByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	req, err := scanFriendRequest(s.db.QueryRowContext(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests WHERE id = ?", id.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("getting friend request", err)
	}
	return req, nil
}

func (s *Store) SettleFriendRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus) (*models.FriendRequest, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE friend_requests SET status = ? WHERE id = ? AND status = 'pending'`,
		status, id.String(),
	)
	if err != nil {
		return nil, wrapErr("settling friend request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrapErr("settling friend request", err)
	}
	if affected == 0 {
		if _, getErr := s.FriendRequestByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrNotPending
	}

	s.notifier.notify(store.CollectionFriendRequests)
	return s.FriendRequestByID(ctx, id)
}

func (s *Store) AcceptedFriendRequestsInvolving(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests
		 WHERE status = 'accepted' AND (sender_id = ? OR receiver_id = ?)`,
		userID.String(), userID.String(),
	)
	if err != nil {
		return nil, wrapErr("listing accepted friend requests", err)
	}
	defer rows.Close()

	return collectFriendRequests(rows)
}

func (s *Store) PendingFriendRequestsFor(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests
		 WHERE status = 'pending' AND receiver_id = ?
		 ORDER BY created_at DESC`,
		receiverID.String(),
	)
	if err != nil {
		return nil, wrapErr("listing pending friend requests", err)
	}
	defer rows.Close()

	return collectFriendRequests(rows)
}

func (s *Store) HasPendingFriendRequestBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = 'pending'
			  AND ((sender_id = ? AND receiver_id = ?)
			    OR (sender_id = ? AND receiver_id = ?))
		)`,
		a.String(), b.String(), b.String(), a.String(),
	).Scan(&exists)
	if err != nil {
		return false, wrapErr("checking pending friend request", err)
	}
	return exists, nil
}

func collectFriendRequests(rows *sql.Rows) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	for rows.Next() {
		r, err := scanFriendRequest(rows)
		if err != nil {
			return nil, wrapErr("scanning friend request", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading friend requests", err)
	}
	return requests, nil
}
