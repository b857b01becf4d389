package session

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL is how long a session may sit idle before the sweep removes it.
const DefaultTTL = 24 * time.Hour

var (
	// ErrSessionNotFound reports an unknown, expired or already completed
	// session. The caller should restart the stage.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidState reports a submission that references state the
	// session never produced, e.g. a problem number that was never issued.
	ErrInvalidState = errors.New("invalid session state")
)

// Store is the shared registry of live training sessions. Entries are
// independent, so a single RWMutex around the map suffices; per-session
// field mutation is guarded by each session's own lock. Expiry is enforced
// both on read and by the periodic sweep.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*TrainingSession
	ttl      time.Duration
}

// NewStore creates a session store with the given TTL; ttl <= 0 falls back
// to DefaultTTL
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*TrainingSession),
		ttl:      ttl,
	}
}

// TTL returns the configured session lifetime
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put registers a session
func (s *Store) Put(sess *TrainingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get returns a live session. An expired entry is removed on the spot and
// reported as not found.
func (s *Store) Get(id string) (*TrainingSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Expired(time.Now()) {
		s.Remove(id)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove deletes a session; removing an absent id is a no-op
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of registered sessions, expired ones included
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepExpired removes every session past its TTL and returns how many
// were dropped. Safe to run concurrently with reads and submissions for
// other sessions, and idempotent.
func (s *Store) SweepExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
