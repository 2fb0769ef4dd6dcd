// Package db provides SQLite storage for the remotectl audit trail.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/tOgg1/remotectl/internal/logging"
)

// DB wraps a SQLite connection.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload_json TEXT,
		metadata_json TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS events_timestamp_idx ON events(timestamp, id)`,
	`CREATE INDEX IF NOT EXISTS events_entity_idx ON events(entity_type, entity_id, timestamp)`,
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	return open(path+dsnPragmas, path)
}

// OpenInMemory opens a private in-memory database, mostly for tests.
func OpenInMemory() (*DB, error) {
	return open(":memory:", ":memory:")
}

func open(dsn, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases shared across calls and
	// serializes writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &DB{
		DB:     conn,
		path:   path,
		logger: logging.Component("db"),
	}, nil
}

// Path returns the database location.
func (db *DB) Path() string {
	return db.path
}

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	return db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}

// Transaction runs fn inside a transaction, committing on success.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
