// Package store provides audit storage backends for FixPipe.
//
// Every dispatched chat turn is recorded as a Turn. The Store interface has
// an in-memory implementation for tests and ephemeral runs, plus SQLite and
// PostgreSQL implementations for persistence.
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/fixpipe/fixpipe/internal/models"
)

// Store defines the audit persistence contract.
type Store interface {
	AddTurn(t models.Turn) error
	GetTurns() ([]models.Turn, error)
	ClearTurns() error
	Close() error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for persistent stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value forms; everything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory audit store.
type InMemoryStore struct {
	mu    sync.Mutex
	turns []models.Turn
}

// NewInMemoryStore creates an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("store.NewInMemoryStore created")
	return &InMemoryStore{}
}

// AddTurn appends a turn record.
func (s *InMemoryStore) AddTurn(t models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	return nil
}

// GetTurns returns a copy of all recorded turns.
func (s *InMemoryStore) GetTurns() ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

// ClearTurns removes all recorded turns.
func (s *InMemoryStore) ClearTurns() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
