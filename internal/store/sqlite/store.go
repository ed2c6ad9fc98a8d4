// Package sqlite implements the authoritative store on a local SQLite file.
// It is the fallback for environments without a live remote connection:
// same entity shapes, transactional writes, and an in-process change
// notifier standing in for the remote change feed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/HammerMeetNail/splitsync/internal/logging"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	created_at INTEGER NOT NULL,
	last_seen INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS friend_requests (
	id TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	receiver_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined')),
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_pending_pair
	ON friend_requests (min(sender_id, receiver_id), max(sender_id, receiver_id))
	WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS groups (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	creator_id TEXT NOT NULL REFERENCES users(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS group_invitations (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	inviter_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	invitee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined')),
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS group_invitations_pending_invitee
	ON group_invitations (group_id, invitee_id)
	WHERE status = 'pending';
`

type Store struct {
	db       *sql.DB
	notifier *notifier
	log      *logging.Logger
}

// New prepares the schema and returns a ready store. The *sql.DB handle
// stays owned by the caller.
func New(db *sql.DB, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Default
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return &Store{db: db, notifier: newNotifier(), log: log}, nil
}

func (s *Store) Close() error {
	s.notifier.closeAll()
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// wrapErr maps database/sql failures onto the store's error kinds.
func wrapErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			if strings.Contains(err.Error(), "pending") {
				return store.ErrDuplicatePending
			}
			if strings.Contains(err.Error(), "username") {
				return store.ErrDuplicateUsername
			}
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return store.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// inTx runs fn inside a transaction, rolling back unless fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
