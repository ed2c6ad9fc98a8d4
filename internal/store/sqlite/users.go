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

const userColumns = "id, username, display_name, email, phone, created_at, last_seen"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                  models.User
		id                 string
		createdAt, lastSeen int64
	)
	if err := row.Scan(&id, &u.Username, &u.DisplayName, &u.Email, &u.Phone, &createdAt, &lastSeen); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	u.ID = parsed
	u.CreatedAt = fromMillis(createdAt)
	u.LastSeen = fromMillis(lastSeen)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	ts := now()
	user := &models.User{
		ID:          uuid.New(),
		Username:    params.Username,
		DisplayName: params.DisplayName,
		Email:       params.Email,
		Phone:       params.Phone,
		CreatedAt:   ts,
		LastSeen:    ts,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, email, phone, created_at, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.DisplayName, user.Email, user.Phone,
		toMillis(ts), toMillis(ts),
	)
	if err != nil {
		return nil, wrapErr("creating user", err)
	}

	s.notifier.notify(store.CollectionUsers)
	return user, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userWhere(ctx, "id = ?", id.String())
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userWhere(ctx, "username = ?", username)
}

func (s *Store) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.userWhere(ctx, "phone = ?", phone)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond, arg,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("getting user", err)
	}
	return user, nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return nil, wrapErr("listing users by ids", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY username",
	)
	if err != nil {
		return nil, wrapErr("listing users", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr("scanning user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading users", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET username = COALESCE(?, username),
		     display_name = COALESCE(?, display_name),
		     email = COALESCE(?, email),
		     phone = COALESCE(?, phone),
		     last_seen = ?
		 WHERE id = ?`,
		params.Username, params.DisplayName, params.Email, params.Phone,
		toMillis(now()), id.String(),
	)
	if err != nil {
		return nil, wrapErr("updating user", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrapErr("updating user", err)
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	s.notifier.notify(store.CollectionUsers)
	return s.UserByID(ctx, id)
}

func (s *Store) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_seen = ? WHERE id = ?",
		toMillis(now()), id.String(),
	)
	if err != nil {
		return wrapErr("touching last seen", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("touching last seen", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
