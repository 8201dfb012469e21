// Package caremesh provides a high-level façade over the workflow
// orchestrator and its services (sessions, memory, messaging, evaluation &
// logging) for building clinical-procedure lookup systems. Most
// applications interact with this package by:
//  1. Creating a CareMesh via New() with search, validation and synthesis
//     collaborators (optionally overriding default in-memory services)
//  2. Submitting requests asynchronously (Process) or synchronously
//     (ProcessSync)
//  3. Polling sessions and pausing/resuming long-running work
//
// The façade delegates coordination to orchestrator.Orchestrator while
// keeping setup and usage ergonomics concise. All defaults are safe for
// local development and testing.
package caremesh

import (
	"context"
	"fmt"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
	"github.com/hupe1980/caremesh/memory"
	"github.com/hupe1980/caremesh/orchestrator"
	"github.com/hupe1980/caremesh/session"
)

// Options configures the CareMesh instance.
type Options struct {
	// SessionStore holds session state (defaults to in-memory).
	SessionStore core.SessionStore

	// MemoryBank holds request and result summaries (defaults to an
	// in-memory bank of MemoryBankSize records).
	MemoryBank core.MemoryBank

	// MemoryBankSize sets the default bank capacity when MemoryBank is nil.
	MemoryBankSize int

	// CompactionThreshold scales the result compaction limit. Zero keeps
	// the compactor default.
	CompactionThreshold float64

	// Metrics is an optional metrics sink.
	Metrics core.MetricsRecorder

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// CareMesh is the high-level façade aggregating the orchestrator and its
// services.
type CareMesh struct {
	opts Options
	orch *orchestrator.Orchestrator
}

// New creates a new CareMesh around the three workflow collaborators. Any
// unset service is initialized with an in-memory implementation.
func New(search, validation, synthesis core.Collaborator, optFns ...func(o *Options)) *CareMesh {
	opts := Options{
		MemoryBankSize: memory.DefaultCapacity,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(func(o *session.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.MemoryBank == nil {
		opts.MemoryBank = memory.NewBank(func(o *memory.Options) {
			o.Capacity = opts.MemoryBankSize
			o.Logger = opts.Logger
			o.Metrics = opts.Metrics
		})
	}

	orch := orchestrator.New(search, validation, synthesis, func(o *orchestrator.Options) {
		o.SessionStore = opts.SessionStore
		o.MemoryBank = opts.MemoryBank
		o.CompactionThreshold = opts.CompactionThreshold
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	})

	return &CareMesh{opts: opts, orch: orch}
}

// Orchestrator exposes the underlying orchestrator for advanced use
// (message history, evaluations, loop execution).
func (m *CareMesh) Orchestrator() *orchestrator.Orchestrator { return m.orch }

// CreateSession creates a new session and returns its id.
func (m *CareMesh) CreateSession() string { return m.orch.CreateSession() }

// Process creates a session, launches the workflow in the background and
// returns the session id immediately. Poll Session for the outcome.
func (m *CareMesh) Process(ctx context.Context, serviceName, setting string) string {
	sessionID := m.orch.CreateSession()
	m.orch.Launch(ctx, sessionID, serviceName, setting)
	return sessionID
}

// ProcessSync runs the whole workflow and returns the terminal session.
// Collaborator failures terminate the session with an error status but do
// not produce a Go error; cancellation and unexpected failures do.
func (m *CareMesh) ProcessSync(ctx context.Context, serviceName, setting string) (*core.Session, error) {
	sessionID := m.orch.CreateSession()
	if err := m.orch.ProcessServiceRequest(ctx, sessionID, serviceName, setting); err != nil {
		if sess, ok := m.opts.SessionStore.Get(sessionID); ok {
			return sess, err
		}
		return nil, err
	}

	sess, ok := m.opts.SessionStore.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s disappeared after processing", sessionID)
	}
	return sess, nil
}

// Session returns the current snapshot of a session.
func (m *CareMesh) Session(sessionID string) (*core.Session, bool) {
	return m.opts.SessionStore.Get(sessionID)
}

// Pause pauses the running workflow for a session.
func (m *CareMesh) Pause(sessionID string) bool { return m.orch.Pause(sessionID) }

// Resume restarts the workflow for a paused session.
func (m *CareMesh) Resume(ctx context.Context, sessionID string) bool {
	return m.orch.Resume(ctx, sessionID)
}

// Wait blocks until all background workflows have finished.
func (m *CareMesh) Wait() { m.orch.Wait() }
