// Package session provides the in-memory session store for FixPipe flows.
//
// The store is the only shared mutable state in the dispatch path. It
// guarantees that operations on the same session id are mutually exclusive
// (concurrent turns for one id serialize) while turns for different ids do
// not contend. Abandoned sessions are evicted by a TTL janitor.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fixpipe/fixpipe/internal/models"
)

// Default configuration constants
const (
	// DefaultTTL is the default idle lifetime of a session before eviction.
	DefaultTTL = 30 * time.Minute
	// DefaultSweepInterval is how often the janitor scans for stale sessions.
	DefaultSweepInterval = 1 * time.Minute
)

// Opts holds configuration options for the session store.
type Opts struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// Option defines a configuration option for the session store.
type Option func(*Opts)

// WithTTL sets the idle lifetime of a session before eviction.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.TTL = ttl
	}
}

// WithSweepInterval sets how often the janitor scans for stale sessions.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Opts) {
		o.SweepInterval = d
	}
}

// entry pairs a session with its per-id mutex. The gone flag marks entries
// removed while another goroutine was waiting on the mutex.
type entry struct {
	mu      sync.Mutex
	gone    bool
	session *models.Session
}

// Store is a concurrent session store with per-id mutual exclusion and TTL
// eviction. Construct with NewStore and release with Close.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a session store and starts its TTL janitor.
func NewStore(opts ...Option) *Store {
	cfg := Opts{TTL: DefaultTTL, SweepInterval: DefaultSweepInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("session.NewStore created", "ttl", cfg.TTL, "sweep_interval", cfg.SweepInterval)

	s := &Store{
		sessions: make(map[string]*entry),
		ttl:      cfg.TTL,
		stop:     make(chan struct{}),
	}
	go s.janitor(cfg.SweepInterval)
	return s
}

// Create registers a new session for id at step 0 with an empty answer map.
// An existing session for the same id is replaced.
func (s *Store) Create(id string, flow models.FlowDefinition) *models.Session {
	now := time.Now()
	sess := &models.Session{
		ID:        id,
		Flow:      flow,
		StepIndex: 0,
		Answers:   make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Swap the map slot first, then mark the displaced entry. Taking an
	// entry lock while holding s.mu would invert the e.mu before s.mu
	// order used by Update and deadlock against a concurrent removal.
	s.mu.Lock()
	old, replaced := s.sessions[id]
	s.sessions[id] = &entry{session: sess}
	s.mu.Unlock()
	if replaced {
		old.mu.Lock()
		old.gone = true
		old.mu.Unlock()
		slog.Warn("session.Store.Create: replacing existing session", "session_id", id)
	}

	slog.Debug("session.Store.Create: session created", "session_id", id, "steps", len(flow))
	return sess
}

// Exists reports whether an active session exists for id. A session idle
// past the TTL counts as expired even before the janitor sweeps it.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return false
	}
	if s.stale(e.session) {
		e.gone = true
		s.removeEntry(id, e)
		return false
	}
	return true
}

// Update runs fn with exclusive access to the session for id. It returns
// models.ErrExpiredSession if no session exists (unknown id, completed flow,
// or TTL eviction). If fn returns remove=true the session is removed before
// Update returns, regardless of fn's error.
func (s *Store) Update(id string, fn func(*models.Session) (remove bool, err error)) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return models.ErrExpiredSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		// Removed while we were waiting on the entry lock.
		return models.ErrExpiredSession
	}
	if s.stale(e.session) {
		e.gone = true
		s.removeEntry(id, e)
		slog.Debug("session.Store.Update: session expired", "session_id", id)
		return models.ErrExpiredSession
	}

	remove, err := fn(e.session)
	e.session.UpdatedAt = time.Now()
	if remove {
		e.gone = true
		s.removeEntry(id, e)
		slog.Debug("session.Store.Update: session removed", "session_id", id)
	}
	return err
}

// stale reports whether the session has been idle past the TTL. Callers must
// hold the entry lock.
func (s *Store) stale(sess *models.Session) bool {
	return time.Since(sess.UpdatedAt) > s.ttl
}

// removeEntry deletes the map slot for id only while it still holds e, so a
// replacement registered by Create in the meantime is left intact.
func (s *Store) removeEntry(id string, e *entry) {
	s.mu.Lock()
	if cur, ok := s.sessions[id]; ok && cur == e {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
}

// Delete removes the session for id if present.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.gone = true
		e.mu.Unlock()
		slog.Debug("session.Store.Delete: session removed", "session_id", id)
	}
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshots returns read-only views of all active sessions.
func (s *Store) Snapshots() []models.SessionSnapshot {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	snaps := make([]models.SessionSnapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.gone {
			sess := e.session
			snaps = append(snaps, models.SessionSnapshot{
				ID:        sess.ID,
				StepIndex: sess.StepIndex,
				StepCount: len(sess.Flow),
				CreatedAt: sess.CreatedAt,
				UpdatedAt: sess.UpdatedAt,
			})
		}
		e.mu.Unlock()
	}
	return snaps
}

// Close stops the TTL janitor. Active sessions remain readable until the
// store is garbage collected.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// janitor periodically evicts sessions idle past the TTL.
func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictStale()
		}
	}
}

// evictStale removes sessions whose last update is older than the TTL.
func (s *Store) evictStale() {
	s.mu.Lock()
	stale := make(map[string]*entry)
	for id, e := range s.sessions {
		stale[id] = e
	}
	s.mu.Unlock()

	for id, e := range stale {
		e.mu.Lock()
		expired := !e.gone && s.stale(e.session)
		if expired {
			e.gone = true
		}
		e.mu.Unlock()
		if expired {
			s.removeEntry(id, e)
			slog.Info("session.Store: evicted stale session", "session_id", id)
		}
	}
}
