// Package store is the transactional persistence layer for shelf occupancy,
// the pick/put job queues and the operation history. The database is the
// single synchronization point between job producers and the mover: a job
// is visible to the scheduler the instant its insert commits, and deletion
// on protocol ACK is the point past which no other consumer may act on it.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound indicates the referenced shelf, basket or mapping row
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a destination shelf already holds a different
	// basket and overwrite was not allowed.
	ErrConflict = errors.New("destination occupied")
)

// timeLayout is the canonical timestamp format for all TEXT time columns.
// Millisecond precision keeps queue ordering stable and lexicographically
// sortable.
const timeLayout = "2006-01-02T15:04:05.000"

const schema = `
CREATE TABLE IF NOT EXISTS shelf_data (
	shelf_id        INTEGER PRIMARY KEY,
	x_column        INTEGER NOT NULL,
	y_row           INTEGER NOT NULL,
	z_depth         INTEGER NOT NULL DEFAULT 0,
	zone            INTEGER NOT NULL DEFAULT 0,
	can_use         INTEGER NOT NULL DEFAULT 1,
	basket_id       TEXT,
	active          INTEGER NOT NULL DEFAULT 0,
	lastupdate_time TEXT
);

CREATE TABLE IF NOT EXISTS basket_data (
	basket_id TEXT PRIMARY KEY,
	shelf_id  INTEGER REFERENCES shelf_data(shelf_id)
);

CREATE TABLE IF NOT EXISTS queue_pick (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	basket     TEXT NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	z          INTEGER NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%f','now'))
);

CREATE TABLE IF NOT EXISTS queue_put (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	basket     TEXT NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	z          INTEGER NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%f','now'))
);

CREATE TABLE IF NOT EXISTS operation_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	shelf_id       INTEGER NOT NULL REFERENCES shelf_data(shelf_id),
	basket_id      TEXT,
	operation_type TEXT NOT NULL,
	status         TEXT NOT NULL,
	timestamp      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shelf_basket ON shelf_data(basket_id);
CREATE INDEX IF NOT EXISTS idx_queue_pick_created ON queue_pick(created_at);
CREATE INDEX IF NOT EXISTS idx_queue_put_created ON queue_put(created_at);
CREATE INDEX IF NOT EXISTS idx_history_shelf ON operation_history(shelf_id);
`

// Store wraps the SQLite database. It is safe for concurrent use by the
// mover, the QR listener and the API handlers; writers are serialized by
// SQLite with immediate transaction locking.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists. The special path ":memory:" opens a private in-memory
// database, used by tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	inMemory := path == ":memory:"
	if inMemory {
		dsn = "file::memory:?_foreign_keys=on&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if inMemory {
		// A pooled connection would see a different empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database. Implements io.Closer.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity. Useful for health checks.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
