// Package agent provides building blocks for collaborator implementations:
// a Base type carrying identity, status and an append-only action log, plus
// a function-backed collaborator for tests and lightweight integrations.
// Model-backed collaborators live in the openai and anthropic subpackages.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
)

// ActionEntry is one timestamped entry in a collaborator's action log.
type ActionEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
}

// Base bundles identity, status tracking and the action log shared by
// concrete collaborators. Embed it and supply an Execute method to satisfy
// core.Collaborator. All exported methods are goroutine-safe.
type Base struct {
	name      string
	agentType string

	mu      sync.Mutex
	status  string
	actions []ActionEntry

	logger logging.Logger
}

// NewBase constructs a Base with the given identity.
func NewBase(name, agentType string, logger logging.Logger) Base {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return Base{name: name, agentType: agentType, status: "idle", logger: logger}
}

// Name returns the collaborator's stable identifier.
func (b *Base) Name() string { return b.name }

// Type returns the collaborator category.
func (b *Base) Type() string { return b.agentType }

// Status returns the current status string.
func (b *Base) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// SetStatus updates the status string.
func (b *Base) SetStatus(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

// LogAction appends a timestamped entry to the action log.
func (b *Base) LogAction(action string, data map[string]any) {
	b.mu.Lock()
	b.actions = append(b.actions, ActionEntry{Timestamp: time.Now().UTC(), Action: action, Data: data})
	b.mu.Unlock()
	b.logger.Info("agent action agent_id=%s action=%s", b.name, action)
}

// Actions returns a copy of the action log.
func (b *Base) Actions() []ActionEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ActionEntry, len(b.actions))
	copy(out, b.actions)
	return out
}

// Func adapts a plain function into a core.Collaborator. Useful for tests,
// examples and integrations that do not need a dedicated type.
type Func struct {
	Base
	fn func(ctx context.Context, input map[string]any) (map[string]any, error)
}

// NewFunc wraps fn as a collaborator with the given identity.
func NewFunc(name, agentType string, fn func(ctx context.Context, input map[string]any) (map[string]any, error)) *Func {
	return &Func{Base: NewBase(name, agentType, nil), fn: fn}
}

// Execute implements core.Collaborator.
func (f *Func) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	f.SetStatus("running")
	defer f.SetStatus("idle")
	return f.fn(ctx, input)
}

// Interface compliance (compile-time assertion)
var _ core.Collaborator = (*Func)(nil)
