package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

const userColumns = "id, username, display_name, email, phone, created_at, last_seen"

func scanUser(row Row, u *models.User) error {
	return row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.Phone, &u.CreatedAt, &u.LastSeen)
}

func (s *Store) CreateUser(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	user := &models.User{}
	err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (username, display_name, email, phone)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		params.Username, params.DisplayName, params.Email, params.Phone,
	), user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, store.ErrDuplicateUsername
		}
		return nil, wrapErr("creating user", err)
	}

	s.publish(ctx, store.CollectionUsers, user.ID.String())
	return user, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userWhere(ctx, "id = $1", id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userWhere(ctx, "username = $1", username)
}

func (s *Store) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.userWhere(ctx, "phone = $1", phone)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (*models.User, error) {
	user := &models.User{}
	err := scanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond, arg,
	), user)
	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := s.db.Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ANY($1)", ids,
	)
	if err != nil {
		return nil, wrapErr("listing users by ids", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY username",
	)
	if err != nil {
		return nil, wrapErr("listing users", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func collectUsers(rows Rows) ([]models.User, error) {
	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, wrapErr("scanning user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("reading users", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	user := &models.User{}
	err := scanUser(s.db.QueryRow(ctx,
		`UPDATE users
		 SET username = COALESCE($2, username),
		     display_name = COALESCE($3, display_name),
		     email = COALESCE($4, email),
		     phone = COALESCE($5, phone),
		     last_seen = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, params.Username, params.DisplayName, params.Email, params.Phone,
	), user)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, store.ErrDuplicateUsername
		}
		return nil, wrapErr("updating user", err)
	}

	s.publish(ctx, store.CollectionUsers, user.ID.String())
	return user, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "UPDATE users SET last_seen = NOW() WHERE id = $1", id)
	if err != nil {
		return wrapErr("touching last seen", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
