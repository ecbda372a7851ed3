// Package sqlite implements the local record store on embedded SQLite
// (ncruces/go-sqlite3, WASM build). The database lives in a single file
// on the device; WAL mode keeps UI reads from blocking on sync writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection shared by the per-entity stores.
type DB struct {
	conn *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS exercises (
	local_id      TEXT PRIMARY KEY,
	remote_id     INTEGER,
	is_deleted    INTEGER NOT NULL DEFAULT 0,
	sync_state    TEXT NOT NULL,
	last_modified TEXT NOT NULL,
	last_synced   TEXT,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_exercises_remote
	ON exercises(remote_id) WHERE remote_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS workouts (
	local_id      TEXT PRIMARY KEY,
	remote_id     INTEGER,
	is_deleted    INTEGER NOT NULL DEFAULT 0,
	sync_state    TEXT NOT NULL,
	last_modified TEXT NOT NULL,
	last_synced   TEXT,
	title         TEXT NOT NULL,
	notes         TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_workouts_remote
	ON workouts(remote_id) WHERE remote_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS workout_exercises (
	local_id          TEXT PRIMARY KEY,
	remote_id         INTEGER,
	is_deleted        INTEGER NOT NULL DEFAULT 0,
	sync_state        TEXT NOT NULL,
	last_modified     TEXT NOT NULL,
	last_synced       TEXT,
	workout_local_id  TEXT NOT NULL REFERENCES workouts(local_id) ON DELETE CASCADE,
	exercise_local_id TEXT NOT NULL REFERENCES exercises(local_id) ON DELETE CASCADE,
	repetitions       INTEGER NOT NULL DEFAULT 0,
	weight            REAL NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_workout_exercises_remote
	ON workout_exercises(remote_id) WHERE remote_id IS NOT NULL;
-- Link uniqueness holds over non-deleted rows only; a soft-deleted link
-- never blocks recreation.
CREATE UNIQUE INDEX IF NOT EXISTS uq_workout_exercises_active
	ON workout_exercises(workout_local_id, exercise_local_id) WHERE is_deleted = 0;
CREATE INDEX IF NOT EXISTS idx_workout_exercises_workout
	ON workout_exercises(workout_local_id);

CREATE TABLE IF NOT EXISTS sessions (
	local_id         TEXT PRIMARY KEY,
	remote_id        INTEGER,
	is_deleted       INTEGER NOT NULL DEFAULT 0,
	sync_state       TEXT NOT NULL,
	last_modified    TEXT NOT NULL,
	last_synced      TEXT,
	title            TEXT NOT NULL,
	date             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	workout_local_id TEXT REFERENCES workouts(local_id) ON DELETE SET NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_remote
	ON sessions(remote_id) WHERE remote_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS session_sets (
	local_id          TEXT PRIMARY KEY,
	remote_id         INTEGER,
	is_deleted        INTEGER NOT NULL DEFAULT 0,
	sync_state        TEXT NOT NULL,
	last_modified     TEXT NOT NULL,
	last_synced       TEXT,
	session_local_id  TEXT NOT NULL REFERENCES sessions(local_id) ON DELETE CASCADE,
	exercise_local_id TEXT NOT NULL REFERENCES exercises(local_id) ON DELETE CASCADE,
	set_number        INTEGER NOT NULL,
	reps              INTEGER NOT NULL DEFAULT 0,
	weight            REAL NOT NULL DEFAULT 0,
	rpe               REAL,
	note              TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_session_sets_remote
	ON session_sets(remote_id) WHERE remote_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_session_sets_session
	ON session_sets(session_local_id);
`

// Open creates or opens the local database at the given path and ensures
// the schema exists. Foreign keys, WAL mode and a busy timeout are set
// per connection through the DSN, so every pooled connection gets them.
//
// The caller must Close the returned DB.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}
