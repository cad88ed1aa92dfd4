// Package store persists users, recognition sessions and the prediction log.
//
// The SQLite implementation lives here; other backends implement Backend in
// their own packages.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested resource does not exist or is not
// owned by the caller.
var ErrNotFound = errors.New("not found")

// ErrSessionEnded is returned when a write targets a session that has already
// ended.
var ErrSessionEnded = errors.New("session already ended")

// Backend is the persistence capability the rest of the service depends on.
type Backend interface {
	Sessions() SessionStore
	Predictions() PredictionStore
	Users() UserStore
	Ping(ctx context.Context) error
	Close() error
}

// Store represents a SQLite database connection.
type Store struct {
	db   *sql.DB
	path string
}

var _ Backend = (*Store)(nil)

// New creates a new Store with the given database path.
// It opens the database, enables WAL and foreign keys, and runs migrations.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers, so concurrent counter updates queue
	// instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() SessionStore {
	return &SessionRepository{db: s.db}
}

// Predictions returns the prediction log repository for this store.
func (s *Store) Predictions() PredictionStore {
	return &PredictionRepository{db: s.db}
}

// Users returns the user repository for this store.
func (s *Store) Users() UserStore {
	return &UserRepository{db: s.db}
}

// Timestamps are stored as UTC unix nanoseconds so ORDER BY is exact.
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
