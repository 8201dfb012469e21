package core

import "time"

// Status is the lifecycle state of a session. Transitions are constrained to
// the workflow state machine: created → processing → {completed, error,
// cancelled}, plus processing ↔ paused. completed, error and cancelled are
// terminal for a run; a resumed session re-enters processing from paused.
type Status string

const (
	// StatusCreated is the initial status assigned by the session store.
	StatusCreated Status = "created"
	// StatusProcessing marks a session whose workflow task is running.
	StatusProcessing Status = "processing"
	// StatusPaused marks a session whose task was paused by the caller.
	StatusPaused Status = "paused"
	// StatusCompleted is the terminal success status.
	StatusCompleted Status = "completed"
	// StatusError is the terminal failure status.
	StatusError Status = "error"
	// StatusCancelled is the terminal status after cooperative cancellation.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status ends a workflow run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// CanTransitionTo reports whether a status change is allowed by the state
// machine. Re-asserting the current status is always permitted (no-op).
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusCreated:
		// error covers input validation failures that never start a step.
		return next == StatusProcessing || next == StatusError || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusError || next == StatusCancelled || next == StatusPaused
	case StatusPaused:
		return next == StatusProcessing
	default:
		return false
	}
}

// HistoryEntry is one timestamped entry in a session's append-only log.
type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
}

// Session tracks one end-to-end workflow run: identity, lifecycle status,
// an open request/result data map, a workflow-internal state map and an
// ordered history log.
//
// Contract:
//   - Sessions are mutated exclusively through a SessionStore; the type
//     itself carries no lock.
//   - Data and State updates are merged, never replaced; unknown keys are
//     additive.
//   - UpdatedAt strictly increases on every mutation.
//   - Clone performs deep copies of maps/slices for safe divergence.
type Session struct {
	ID        string         `json:"id"`
	Status    Status         `json:"status"`
	Data      map[string]any `json:"data"`
	State     map[string]any `json:"state"`
	History   []HistoryEntry `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSession creates a session in the created status with empty maps.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Status:    StatusCreated,
		Data:      map[string]any{},
		State:     map[string]any{},
		History:   []HistoryEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := &Session{
		ID:        s.ID,
		Status:    s.Status,
		Data:      make(map[string]any, len(s.Data)),
		State:     make(map[string]any, len(s.State)),
		History:   make([]HistoryEntry, len(s.History)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for k, v := range s.Data {
		clone.Data[k] = v
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.History, s.History)
	return clone
}

// SessionUpdate describes one merge-style mutation applied by a
// SessionStore. Zero-value fields are skipped: a nil map leaves the
// corresponding session map untouched and an empty Status leaves the status
// unchanged.
type SessionUpdate struct {
	Status Status
	Data   map[string]any
	State  map[string]any
}

// SessionStore owns the session table and is the single mutation entry
// point. Mutating operations report failure for an absent id with a plain
// boolean rather than an error; the full read-modify-write of each call is
// one critical section so concurrent workflows never interleave updates to
// the same session.
type SessionStore interface {
	Create(initial map[string]any) string
	Get(id string) (*Session, bool)
	Update(id string, upd SessionUpdate) bool
	AppendHistory(id string, action string, data map[string]any) bool
	Delete(id string) bool
	List() []string
}
