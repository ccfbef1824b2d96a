// Package sqlite implements the posbridge access audit log backed by a
// SQLite database. Only allowlist decisions are stored, never connection
// state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection for audit operations.
type Store struct {
	db *sql.DB

	insertEventStmt *sql.Stmt
}

const defaultMaxOpenConns = 4

const insertEventQuery = `INSERT INTO access_events (remote_ip, allowed, created_at) VALUES (?, ?, ?)`

// Open creates or opens the SQLite database at path, runs migrations, and
// enables WAL mode.
func Open(path string) (*Store, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=synchronous(normal)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxOpenConns)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite setup (%s): %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if s.insertEventStmt, err = db.PrepareContext(context.Background(), insertEventQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert access event: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	var stmtErr error
	if s.insertEventStmt != nil {
		stmtErr = s.insertEventStmt.Close()
		s.insertEventStmt = nil
	}
	return errors.Join(stmtErr, s.db.Close())
}

// Migrate creates the audit table and its index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS access_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	remote_ip TEXT NOT NULL,
	allowed INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_events_created_at ON access_events(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
