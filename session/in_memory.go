// Package session provides the in-memory SessionStore implementation. It is
// the single mutation entry point for session state: all other components
// read sessions through Get (which clones) and write through Update.
package session

import (
	"sync"
	"time"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
)

// InMemoryStore is a volatile core.SessionStore keeping sessions in a
// process-local map. The whole read-modify-write of every mutating call runs
// under one exclusive lock so concurrent workflows never interleave updates
// to the same session. Returned sessions are clones to prevent external
// mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	logger   logging.Logger
}

// Options holds configuration overrides for NewInMemoryStore.
type Options struct {
	Logger logging.Logger
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		sessions: make(map[string]*core.Session),
		logger:   opts.Logger,
	}
}

// Create allocates a new session in the created status, seeding Data with
// the optional initial map, and returns its generated id.
func (s *InMemoryStore) Create(initial map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(core.NewID())
	for k, v := range initial {
		sess.Data[k] = v
	}
	s.sessions[sess.ID] = sess

	s.logger.Info("session created session_id=%s", sess.ID)

	return sess.ID
}

// Get returns a clone of the session, or false when the id is unknown.
func (s *InMemoryStore) Get(id string) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Update merges the provided data/state maps into the session and applies
// the status change when one is supplied. It returns false for an unknown id
// or a status transition the state machine forbids; a rejected update leaves
// the session untouched.
func (s *InMemoryStore) Update(id string, upd core.SessionUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}

	if upd.Status != "" && !sess.Status.CanTransitionTo(upd.Status) {
		s.logger.Warn("rejected status transition session_id=%s from=%s to=%s", id, sess.Status, upd.Status)
		return false
	}

	for k, v := range upd.Data {
		sess.Data[k] = v
	}
	for k, v := range upd.State {
		sess.State[k] = v
	}
	if upd.Status != "" {
		sess.Status = upd.Status
	}
	sess.UpdatedAt = s.tick(sess.UpdatedAt)

	return true
}

// AppendHistory appends a timestamped entry to the session's history log.
func (s *InMemoryStore) AppendHistory(id string, action string, data map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.History = append(sess.History, core.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Data:      data,
	})
	sess.UpdatedAt = s.tick(sess.UpdatedAt)
	return true
}

// Delete removes a session. Sessions are never deleted automatically; this
// is the explicit-only removal path.
func (s *InMemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	s.logger.Info("session deleted session_id=%s", id)
	return true
}

// List returns the ids of all stored sessions.
func (s *InMemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// tick produces a timestamp strictly after prev. Wall clocks can repeat
// within one update burst; UpdatedAt must strictly increase on every
// mutation.
func (s *InMemoryStore) tick(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}
