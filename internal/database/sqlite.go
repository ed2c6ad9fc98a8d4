package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	DB *sql.DB
}

var (
	openSQLite = sql.Open
	pingSQLite = func(db *sql.DB) error {
		return db.Ping()
	}
)

// NewSQLiteDB opens the local durable cache. WAL keeps concurrent readers
// cheap and foreign keys drive the invitation cascade on group delete.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"

	db, err := openSQLite("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single writer connection sidesteps SQLITE_BUSY under write load.
	db.SetMaxOpenConns(1)

	if err := pingSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	return &SQLiteDB{DB: db}, nil
}

func (s *SQLiteDB) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *SQLiteDB) Health(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
