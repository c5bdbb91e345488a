// Package store provides storage backends for FixPipe.
//
// This file implements an SQLite-backed audit store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fixpipe/fixpipe/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists audit turns in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddTurn inserts a turn record.
func (s *SQLiteStore) AddTurn(t models.Turn) error {
	_, err := s.db.Exec(`INSERT INTO turns (session_id, query, type, latency_ms, time) VALUES (?, ?, ?, ?, ?)`,
		t.SessionID, t.Query, string(t.Type), t.LatencyMS, t.Time)
	if err != nil {
		slog.Error("SQLiteStore.AddTurn failed", "error", err, "session_id", t.SessionID)
		return fmt.Errorf("failed to insert turn for %s: %w", t.SessionID, err)
	}
	slog.Debug("SQLiteStore.AddTurn succeeded", "session_id", t.SessionID, "type", t.Type)
	return nil
}

// GetTurns returns all recorded turns in insertion order.
func (s *SQLiteStore) GetTurns() ([]models.Turn, error) {
	rows, err := s.db.Query(`SELECT session_id, query, type, latency_ms, time FROM turns ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore.GetTurns query failed", "error", err)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var typ string
		if err := rows.Scan(&t.SessionID, &t.Query, &typ, &t.LatencyMS, &t.Time); err != nil {
			slog.Error("SQLiteStore.GetTurns scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		t.Type = models.ResponseType(typ)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore.GetTurns rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	slog.Debug("SQLiteStore.GetTurns succeeded", "count", len(turns))
	return turns, nil
}

// ClearTurns removes all recorded turns.
func (s *SQLiteStore) ClearTurns() error {
	if _, err := s.db.Exec(`DELETE FROM turns`); err != nil {
		slog.Error("SQLiteStore.ClearTurns failed", "error", err)
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
