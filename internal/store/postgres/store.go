// Package postgres implements the authoritative store on PostgreSQL, with
// change notifications fanned out over Redis pub/sub so every device sees
// fresh snapshots after any writer commits.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/splitsync/internal/logging"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type Store struct {
	db  DB
	bus Bus
	log *logging.Logger
}

func New(db DB, bus Bus, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Default
	}
	return &Store{db: db, bus: bus, log: log}
}

// Close is a no-op: the pool and redis client are owned by the caller.
func (s *Store) Close() error {
	return nil
}

func channelFor(c store.Collection) string {
	return "changefeed:" + string(c)
}

// publish notifies watchers that a collection changed. Failures are logged,
// not returned: the write itself committed, and subscribers reconcile on
// their next snapshot anyway.
func (s *Store) publish(ctx context.Context, c store.Collection, docID string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, channelFor(c), docID); err != nil {
		s.log.Warn("Change feed publish failed", map[string]interface{}{
			"collection": string(c),
			"error":      err.Error(),
		})
	}
}

// wrapErr maps driver failures onto the store's error kinds. Anything that
// is not a SQL-level rejection is treated as the remote being unreachable.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if strings.Contains(pgErr.ConstraintName, "pending") {
				return store.ErrDuplicatePending
			}
			return fmt.Errorf("%s: %w", op, err)
		case pgForeignKeyViolation:
			return store.ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
}
