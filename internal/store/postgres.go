// Package store provides storage backends for FixPipe.
//
// This file implements a PostgreSQL-backed audit store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/fixpipe/fixpipe/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists audit turns in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// AddTurn inserts a turn record.
func (s *PostgresStore) AddTurn(t models.Turn) error {
	_, err := s.db.Exec(`INSERT INTO turns (session_id, query, type, latency_ms, time) VALUES ($1, $2, $3, $4, $5)`,
		t.SessionID, t.Query, string(t.Type), t.LatencyMS, t.Time)
	if err != nil {
		slog.Error("PostgresStore.AddTurn failed", "error", err, "session_id", t.SessionID)
		return fmt.Errorf("failed to insert turn for %s: %w", t.SessionID, err)
	}
	slog.Debug("PostgresStore.AddTurn succeeded", "session_id", t.SessionID, "type", t.Type)
	return nil
}

// GetTurns returns all recorded turns in insertion order.
func (s *PostgresStore) GetTurns() ([]models.Turn, error) {
	rows, err := s.db.Query(`SELECT session_id, query, type, latency_ms, time FROM turns ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore.GetTurns query failed", "error", err)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var typ string
		if err := rows.Scan(&t.SessionID, &t.Query, &typ, &t.LatencyMS, &t.Time); err != nil {
			slog.Error("PostgresStore.GetTurns scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		t.Type = models.ResponseType(typ)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore.GetTurns rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	slog.Debug("PostgresStore.GetTurns succeeded", "count", len(turns))
	return turns, nil
}

// ClearTurns removes all recorded turns.
func (s *PostgresStore) ClearTurns() error {
	if _, err := s.db.Exec(`DELETE FROM turns`); err != nil {
		slog.Error("PostgresStore.ClearTurns failed", "error", err)
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
