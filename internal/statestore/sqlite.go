// Package statestore provides the key-value stores that back persisted
// tree state. Three implementations cover the deployment spread: SQLite
// for the normal install, a JSON file for environments without a
// writable database, and memory for tests and ephemeral runs.
//
// All of them satisfy tree.Store: Get is total and falls back to the
// caller's default on any trouble, Set reports failures and leaves
// retry policy to the caller.
package statestore

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// SQLiteStore persists key-value state in a single-table SQLite
// database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ tree.Store = (*SQLiteStore)(nil)

// OpenSQLite opens the state database at path, creating the file and
// its parent directory on first use.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open state database: %w", err)
	}

	// Pragmas tuned for many tiny writes; best effort.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		_, _ = db.Exec(pragma)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Get returns the stored value for key, or def when absent. Read
// failures beyond a plain miss are logged and fall back to def.
func (s *SQLiteStore) Get(key, def string) string {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("warning: reading %s: %v", key, err)
		}
		return def
	}
	return value
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
