package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	time_limit INTEGER NOT NULL,
	time_remaining INTEGER NOT NULL,
	additional_time INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 0,
	start_time TEXT,
	date TEXT NOT NULL,
	has_been_rescheduled INTEGER NOT NULL DEFAULT 0,
	completion_time INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS task_history (
	title TEXT PRIMARY KEY,
	completion_times TEXT NOT NULL,
	average_time REAL NOT NULL,
	completion_count INTEGER NOT NULL,
	failed_attempts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_stats (
	date TEXT PRIMARY KEY,
	score INTEGER NOT NULL,
	completion_rate REAL NOT NULL,
	total_attempts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB is the local persistence store for engine state.
type DB struct {
	*sql.DB
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}

// Init creates the schema if it does not exist yet.
func (db *DB) Init(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
