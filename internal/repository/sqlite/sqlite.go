// Package sqlite implements the repository interfaces using SQLite as the
// ballot store.
//
// WHY SQLITE?
// SQLite is an embedded database: a single file, no server to run. It is
// the default store for single-node deployments and for tests (":memory:").
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so no C compiler is needed and
// cross-compilation just works.
//
// ONE CONNECTION:
// The pool is capped at one connection. SQLite serialises writers anyway,
// an in-memory database exists per connection, and per-connection PRAGMAs
// (foreign_keys) would otherwise be lost when the pool opens a new
// connection. The consequence: never run a query while another *sql.Rows
// is still open in the same goroutine, or the second call waits forever.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn  *sql.DB
	feed  *notifier
	clock func() time.Time
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/ballots.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers in other processes (backups, sqlite3 shell) proceed
	// while we write. On ":memory:" SQLite silently keeps "memory" mode.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Ballots and candidates
	// cascade with their election, so we need them on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{
		conn:  conn,
		feed:  newNotifier(),
		clock: time.Now,
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close ends every change subscription and closes the connection pool.
func (db *DB) Close() error {
	db.feed.closeAll()
	return db.conn.Close()
}

// now returns the store clock in UTC. Every timestamp is written in UTC so
// stored values compare consistently.
func (db *DB) now() time.Time {
	return db.clock().UTC()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to
// run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			full_name     TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			user_type     TEXT NOT NULL,
			faculty       TEXT NOT NULL DEFAULT '',
			level         TEXT NOT NULL DEFAULT '',
			index_number  TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			profile_image TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_user_type ON users(user_type);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS elections (
			id            TEXT PRIMARY KEY,
			election_name TEXT NOT NULL,
			faculty       TEXT NOT NULL,
			start_date    DATETIME NOT NULL,
			end_date      DATETIME NOT NULL,
			image         TEXT NOT NULL DEFAULT '',
			admin_id      TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_elections_created_at ON elections(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating elections table: %w", err)
	}

	// Candidates are embedded in elections in the document model; here they
	// get their own table so the schema can enforce unique names per roster.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS candidates (
			election_id TEXT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			id          TEXT NOT NULL,
			name        TEXT NOT NULL,
			image       TEXT NOT NULL DEFAULT '',
			faculty     TEXT NOT NULL DEFAULT '',
			level       TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (election_id, id),
			UNIQUE (election_id, name)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating candidates table: %w", err)
	}

	// UNIQUE(user_id, election_id) is the single-ballot invariant. The
	// candidate columns are a snapshot, not a foreign key.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS ballots (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			election_id       TEXT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
			candidate_id      TEXT NOT NULL DEFAULT '',
			candidate_name    TEXT NOT NULL,
			candidate_image   TEXT NOT NULL DEFAULT '',
			candidate_faculty TEXT NOT NULL DEFAULT '',
			candidate_level   TEXT NOT NULL DEFAULT '',
			voter_name        TEXT NOT NULL DEFAULT '',
			cast_at           DATETIME NOT NULL,
			UNIQUE (user_id, election_id)
		);
		CREATE INDEX IF NOT EXISTS idx_ballots_election_id ON ballots(election_id);
	`)
	if err != nil {
		return fmt.Errorf("creating ballots table: %w", err)
	}

	return nil
}
