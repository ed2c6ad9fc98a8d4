package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

const friendRequestColumns = "id, sender_id, receiver_id, status, created_at"

func scanFriendRequest(row Row, r *models.FriendRequest) error {
	return row.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.Status, &r.CreatedAt)
}

func (s *Store) CreateFriendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	req := &models.FriendRequest{}
	err := scanFriendRequest(s.db.QueryRow(ctx,
		`INSERT INTO friend_requests (sender_id, receiver_id, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING `+friendRequestColumns,
		senderID, receiverID,
	), req)
	if err != nil {
		return nil, wrapErr("creating friend request", err)
	}

	s.publish(ctx, store.CollectionFriendRequests, req.ID.String())
	return req, nil
}

func (s *Store) FriendRequestByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	req := &models.FriendRequest{}
	err := scanFriendRequest(s.db.QueryRow(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests WHERE id = $1", id,
	), req)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("getting friend request", err)
	}
	return req, nil
}

// SettleFriendRequest is a compare-and-set: the status only moves off
// pending once, no matter how many devices respond concurrently.
func (s *Store) SettleFriendRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus) (*models.FriendRequest, error) {
	req := &models.FriendRequest{}
	err := scanFriendRequest(s.db.QueryRow(ctx,
		`UPDATE friend_requests SET status = $2
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+friendRequestColumns,
		id, status,
	), req)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the request is gone or it already settled.
		if _, getErr := s.FriendRequestByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrNotPending
	}
	if err != nil {
		return nil, wrapErr("settling friend request", err)
	}

	s.publish(ctx, store.CollectionFriendRequests, req.ID.String())
	return req, nil
}

func (s *Store) AcceptedFriendRequestsInvolving(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests
		 WHERE status = 'accepted' AND (sender_id = $1 OR receiver_id = $1)`,
		userID,
	)
	if err != nil {
		return nil, wrapErr("listing accepted friend requests", err)
	}
	defer rows.Close()

	return collectFriendRequests(rows)
}

func (s *Store) PendingFriendRequestsFor(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests
		 WHERE status = 'pending' AND receiver_id = $1
		 ORDER BY created_at DESC`,
		receiverID,
	)
	if err != nil {
		return nil, wrapErr("listing pending friend requests", err)
	}
	defer rows.Close()

	return collectFriendRequests(rows)
}

func (s *Store) HasPendingFriendRequestBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = 'pending'
			  AND ((sender_id = $1 AND receiver_id = $2)
			    OR (sender_id = $2 AND receiver_id = $1))
		)`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, wrapErr("checking pending friend request", err)
	}
	return exists, nil
}

func collectFriendRequests(rows Rows) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	for rows.Next() {
		var r models.FriendRequest
		if err := scanFriendRequest(rows, &r); err != nil {
			return nil, wrapErr("scanning friend request", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading friend requests", err)
	}
	return requests, nil
}
