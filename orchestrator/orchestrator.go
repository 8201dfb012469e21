// Package orchestrator coordinates the multi-collaborator workflow: a
// parallel search + memory retrieval step followed by sequential validation
// and synthesis, with pause/resume, cooperative cancellation and a bounded
// loop runner. Each session's workflow runs as an independent task; the
// orchestrator owns its running and paused registries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/caremesh/a2a"
	"github.com/hupe1980/caremesh/compaction"
	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/evaluation"
	"github.com/hupe1980/caremesh/logging"
	"github.com/hupe1980/caremesh/memory"
	"github.com/hupe1980/caremesh/session"
)

// orchestratorID is the bus address of the orchestrator itself.
const orchestratorID = "orchestrator"

// DefaultMaxIterations bounds ExecuteLoop when the caller passes no limit.
const DefaultMaxIterations = 10

// maxTraceLen bounds the diagnostic trace stored on unexpected failures.
const maxTraceLen = 1000

// Options holds configurable dependencies and settings for New.
type Options struct {
	// Session management services.
	SessionStore core.SessionStore
	// Shared memory bank for request and result summaries.
	MemoryBank core.MemoryBank
	// Message bus for correlated request/response traffic.
	Bus *a2a.Bus
	// Evaluator scoring each step against its contract.
	Evaluator *evaluation.Evaluator
	// Compactor applied to the synthesis result.
	Compactor *compaction.Compactor
	// CompactionThreshold overrides the compactor's configured threshold
	// when positive.
	CompactionThreshold float64
	// Optional metrics sink. Nil disables recording.
	Metrics core.MetricsRecorder
	// Logging services.
	Logger logging.Logger
}

// runHandle identifies one running workflow task so a stale task cannot
// deregister a successor started for the same session id.
type runHandle struct {
	runID  string
	cancel context.CancelFunc
}

// pausedRun snapshots a session's state at pause time.
type pausedRun struct {
	State map[string]any
	Data  map[string]any
}

// panicError carries a recovered panic across a goroutine boundary so the
// workflow boundary can classify and record it.
type panicError struct {
	msg   string
	stack string
}

func (p *panicError) Error() string { return p.msg }

// Orchestrator drives the search, validation and synthesis collaborators
// through the workflow state machine. Public methods are safe for
// concurrent use.
type Orchestrator struct {
	search     core.Collaborator
	validation core.Collaborator
	synthesis  core.Collaborator

	sessions  core.SessionStore
	memory    core.MemoryBank
	bus       *a2a.Bus
	evaluator *evaluation.Evaluator
	compactor *compaction.Compactor
	threshold float64
	metrics   core.MetricsRecorder
	logger    logging.Logger

	mu      sync.Mutex
	running map[string]runHandle
	paused  map[string]pausedRun

	wg sync.WaitGroup
}

// New constructs an Orchestrator around the three workflow collaborators
// with optional overrides.
func New(search, validation, synthesis core.Collaborator, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		MemoryBank:   memory.NewBank(),
		Bus:          a2a.NewBus(),
		Evaluator:    evaluation.NewEvaluator(),
		Compactor:    compaction.NewCompactor(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Orchestrator{
		search:     search,
		validation: validation,
		synthesis:  synthesis,
		sessions:   opts.SessionStore,
		memory:     opts.MemoryBank,
		bus:        opts.Bus,
		evaluator:  opts.Evaluator,
		compactor:  opts.Compactor,
		threshold:  opts.CompactionThreshold,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		running:    make(map[string]runHandle),
		paused:     make(map[string]pausedRun),
	}
}

// Sessions returns the session store.
func (o *Orchestrator) Sessions() core.SessionStore { return o.sessions }

// Memory returns the shared memory bank.
func (o *Orchestrator) Memory() core.MemoryBank { return o.memory }

// Bus returns the message bus.
func (o *Orchestrator) Bus() *a2a.Bus { return o.bus }

// Evaluator returns the step evaluator.
func (o *Orchestrator) Evaluator() *evaluation.Evaluator { return o.evaluator }

// CreateSession creates a new session and returns its id.
func (o *Orchestrator) CreateSession() string {
	return o.sessions.Create(nil)
}

// Launch starts the workflow for a session as an independent task and
// returns immediately. The task deregisters itself on completion; its
// outcome is recorded in the session.
func (o *Orchestrator) Launch(ctx context.Context, sessionID, serviceName, setting string) {
	runCtx, cancel := context.WithCancel(ctx)
	handle := runHandle{runID: core.NewID(), cancel: cancel}
	o.register(sessionID, handle)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		defer o.deregister(sessionID, handle.runID)

		_ = o.ProcessServiceRequest(runCtx, sessionID, serviceName, setting)
	}()
}

// Wait blocks until all launched workflow tasks have finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Cancel cancels the running workflow task for a session. The task itself
// records the cancelled status. Returns false if no task is running.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.mu.Lock()
	handle, ok := o.running[sessionID]
	o.mu.Unlock()

	if !ok {
		return false
	}
	handle.cancel()

	return true
}

// Pause pauses a running workflow: the session's current state and data are
// snapshotted into the paused registry, the task is cancelled and the
// session is marked paused. Returns false when no running task is
// registered for the id.
func (o *Orchestrator) Pause(sessionID string) bool {
	o.mu.Lock()
	handle, ok := o.running[sessionID]
	if !ok {
		o.mu.Unlock()
		return false
	}
	delete(o.running, sessionID)
	o.mu.Unlock()
	o.updateGauge()

	if sess, found := o.sessions.Get(sessionID); found {
		o.mu.Lock()
		o.paused[sessionID] = pausedRun{State: sess.State, Data: sess.Data}
		o.mu.Unlock()
	}

	// The paused registry entry is in place before the cancel fires, so the
	// task's cancellation handler leaves the status to us.
	handle.cancel()

	o.sessions.Update(sessionID, core.SessionUpdate{Status: core.StatusPaused})
	o.sessions.AppendHistory(sessionID, "workflow_paused", nil)
	o.logger.Info("operation paused session_id=%s", sessionID)

	return true
}

// Resume restarts the workflow for a paused session from scratch. It
// requires a paused registry entry and the stored service name and setting;
// otherwise it returns false and the session stays paused. There is no
// partial-step checkpointing.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) bool {
	o.mu.Lock()
	_, ok := o.paused[sessionID]
	o.mu.Unlock()
	if !ok {
		return false
	}

	sess, found := o.sessions.Get(sessionID)
	if !found {
		return false
	}
	serviceName, _ := sess.Data["service_name"].(string)
	setting, _ := sess.Data["setting"].(string)
	if serviceName == "" || setting == "" {
		return false
	}

	o.mu.Lock()
	delete(o.paused, sessionID)
	o.mu.Unlock()

	o.sessions.Update(sessionID, core.SessionUpdate{Status: core.StatusProcessing})
	o.sessions.AppendHistory(sessionID, "workflow_resumed", nil)
	o.Launch(ctx, sessionID, serviceName, setting)
	o.logger.Info("operation resumed session_id=%s", sessionID)

	return true
}

// ProcessServiceRequest runs the full workflow for a session synchronously.
// Collaborator failures are handled by short-circuiting with a descriptive
// terminal status and a nil error; cancellation marks the session cancelled
// and re-returns the cancellation; any other failure marks the session
// error with a size-bounded diagnostic. The session always ends terminal.
func (o *Orchestrator) ProcessServiceRequest(ctx context.Context, sessionID, serviceName, setting string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%v", r)
			o.failUnexpected(sessionID, msg, "panic", string(debug.Stack()))
			err = fmt.Errorf("workflow panic: %s", msg)
		}
	}()

	if serviceName == "" || setting == "" {
		o.sessions.Update(sessionID, core.SessionUpdate{
			Status: core.StatusError,
			Data: map[string]any{
				"error":      "service_name and setting are required",
				"error_type": "input_error",
			},
		})
		return fmt.Errorf("session %s: service_name and setting are required", sessionID)
	}

	err = o.runWorkflow(ctx, sessionID, serviceName, setting)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.handleCancellation(sessionID)
			return err
		}
		var pe *panicError
		if errors.As(err, &pe) {
			o.failUnexpected(sessionID, pe.msg, "panic", pe.stack)
			return err
		}
		o.failUnexpected(sessionID, err.Error(), fmt.Sprintf("%T", err), "")
		return err
	}

	return nil
}

func (o *Orchestrator) runWorkflow(ctx context.Context, sessionID, serviceName, setting string) error {
	start := time.Now()

	if ok := o.sessions.Update(sessionID, core.SessionUpdate{
		Status: core.StatusProcessing,
		Data:   map[string]any{"service_name": serviceName, "setting": setting},
	}); !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}

	o.sessions.AppendHistory(sessionID, "workflow_started",
		map[string]any{"service_name": serviceName, "setting": setting})

	o.memory.Add(
		fmt.Sprintf("Service request: %s in %s setting", serviceName, setting),
		map[string]any{"service_name": serviceName, "setting": setting},
		0.8,
	)

	// Step 1: search and memory retrieval run concurrently and rendezvous
	// before anything else proceeds.
	o.logger.Info("starting parallel step session_id=%s", sessionID)

	searchPayload := map[string]any{"service_name": serviceName, "setting": setting}

	var (
		wg            sync.WaitGroup
		searchResults map[string]any
		searchErr     error
		memoryResults map[string]any
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		// A panic here would escape the workflow recover, so convert it
		// into an error the boundary can classify.
		defer func() {
			if r := recover(); r != nil {
				searchErr = &panicError{msg: fmt.Sprintf("%v", r), stack: string(debug.Stack())}
			}
		}()
		searchResults, searchErr = o.executeStep(ctx, o.search, "search", searchPayload,
			[]string{"success", "results", "service_name"})
	}()
	go func() {
		defer wg.Done()
		memoryResults = o.retrieveMemories(serviceName)
	}()
	wg.Wait()

	if searchErr != nil {
		return searchErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !core.Success(searchResults) {
		errMsg := core.ErrorText(searchResults, "Search failed")
		o.logger.Error("search failed session_id=%s error=%s", sessionID, errMsg)
		o.sessions.Update(sessionID, core.SessionUpdate{
			Status: core.StatusError,
			Data: map[string]any{
				"error":      fmt.Sprintf("Search failed: %s", errMsg),
				"error_type": "search_failed",
				"suggestion": "Check the search provider configuration and credentials, then retry the request",
			},
		})
		o.sessions.AppendHistory(sessionID, "workflow_error", map[string]any{"error_type": "search_failed"})
		return nil
	}

	// Step 2: validation runs sequentially on the search output. The
	// nested procedures structure may be absent or empty.
	o.logger.Info("starting validation step session_id=%s", sessionID)

	searchData := core.NestedMap(searchResults, "results")
	procedureData := map[string]any{
		"service_name": serviceName,
		"procedures":   searchData["procedures"],
		"setting":      setting,
	}

	validationResults, err := o.executeStep(ctx, o.validation, "validation",
		map[string]any{"procedure": procedureData, "setting": setting},
		[]string{"success", "validation", "enhanced_procedure"})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !core.Success(validationResults) {
		o.sessions.Update(sessionID, core.SessionUpdate{
			Status: core.StatusError,
			Data:   map[string]any{"error": core.ErrorText(validationResults, "Validation failed")},
		})
		o.sessions.AppendHistory(sessionID, "workflow_error", map[string]any{"error_type": "validation_failed"})
		return nil
	}

	// Step 3: synthesis combines everything gathered so far.
	o.logger.Info("starting synthesis step session_id=%s", sessionID)

	synthesisResults, err := o.executeStep(ctx, o.synthesis, "synthesis",
		map[string]any{
			"search_results":     searchResults,
			"validation_results": validationResults,
			"service_name":       serviceName,
			"setting":            setting,
			"timestamp":          time.Now().UTC().Format(time.RFC3339),
			"memory_context":     memoryResults,
		},
		[]string{"success", "final_procedure"})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	workflowEval := o.evaluator.EvaluateWorkflow([]map[string]any{
		searchResults, validationResults, synthesisResults,
	})
	o.logger.Info("workflow evaluated session_id=%s successful_agents=%d overall_success=%t",
		sessionID, workflowEval.SuccessfulAgents, workflowEval.OverallSuccess)

	finalResult := core.NestedMap(synthesisResults, "final_procedure")
	compacted := o.compactor.Compact(finalResult, o.threshold)
	if compacted == nil {
		compacted = map[string]any{}
	}

	if details, _ := compacted["procedure_details"].(string); strings.TrimSpace(details) == "" {
		compacted["procedure_details"] = fallbackProcedure(serviceName, setting)
		o.logger.Warn("created fallback procedure details session_id=%s", sessionID)
	}

	o.sessions.Update(sessionID, core.SessionUpdate{
		Status: core.StatusCompleted,
		Data: map[string]any{
			"result":          compacted,
			"progress":        1.0,
			"processing_time": time.Since(start).Seconds(),
			"service_name":    serviceName,
			"setting":         setting,
		},
	})

	o.sessions.AppendHistory(sessionID, "workflow_completed",
		map[string]any{"processing_time": time.Since(start).Seconds()})

	o.memory.Add(fmt.Sprintf("Completed procedure lookup for %s", serviceName), compacted, 0.9)
	o.logger.Info("request completed session_id=%s elapsed=%s", sessionID, time.Since(start))

	return nil
}

// executeStep publishes the correlated request, invokes the collaborator,
// evaluates its output against the declared contract and publishes the
// matching response. The collaborator's Go error is returned as-is for the
// workflow boundary to classify.
func (o *Orchestrator) executeStep(
	ctx context.Context,
	collab core.Collaborator,
	agentType string,
	payload map[string]any,
	expectedFields []string,
) (map[string]any, error) {
	req := o.bus.SendRequest(orchestratorID, collab.Name(), payload)

	start := time.Now()
	output, err := collab.Execute(ctx, payload)
	elapsed := time.Since(start)

	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordAgentOperation(agentType, "execute", "error", elapsed)
		}
		return nil, err
	}

	eval := o.evaluator.EvaluateOutput(collab.Name(), agentType, output, expectedFields)
	o.logger.Debug("step evaluated agent=%s score=%.2f", collab.Name(), eval.OverallScore)

	o.bus.SendResponse(collab.Name(), orchestratorID, output, req.CorrelationID)

	if o.metrics != nil {
		status := "error"
		if core.Success(output) {
			status = "success"
		}
		o.metrics.RecordAgentOperation(agentType, "execute", status, elapsed)
	}

	return output, nil
}

// ExecuteLoop repeatedly invokes a collaborator, feeding each iteration's
// output into the next, until the condition holds or maxIterations is
// exhausted. Exhaustion yields a failure result, not a Go error. A
// non-positive maxIterations falls back to DefaultMaxIterations.
func (o *Orchestrator) ExecuteLoop(
	ctx context.Context,
	collab core.Collaborator,
	input map[string]any,
	maxIterations int,
	condition func(map[string]any) bool,
) (map[string]any, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	current := input
	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := collab.Execute(ctx, current)
		if err != nil {
			return nil, err
		}
		if condition != nil && condition(result) {
			return result, nil
		}
		current = result
	}

	return map[string]any{"success": false, "error": "max iterations reached"}, nil
}

func (o *Orchestrator) retrieveMemories(query string) map[string]any {
	memories := o.memory.Retrieve(query, 5, 0.0)
	return map[string]any{"memories": memories, "count": len(memories)}
}

// handleCancellation marks the session cancelled unless it was cancelled on
// behalf of Pause, which owns the paused status.
func (o *Orchestrator) handleCancellation(sessionID string) {
	o.mu.Lock()
	_, pausing := o.paused[sessionID]
	o.mu.Unlock()

	if pausing {
		return
	}

	o.sessions.Update(sessionID, core.SessionUpdate{Status: core.StatusCancelled})
	o.sessions.AppendHistory(sessionID, "workflow_cancelled", nil)
	o.logger.Info("operation cancelled session_id=%s", sessionID)
}

// failUnexpected records an unexpected failure so the session never stays
// in a non-terminal state. The trace is bounded before storage.
func (o *Orchestrator) failUnexpected(sessionID, errMsg, kind, trace string) {
	data := map[string]any{
		"error":      errMsg,
		"error_type": kind,
	}
	if trace != "" {
		if len(trace) > maxTraceLen {
			trace = trace[:maxTraceLen]
		}
		data["traceback"] = trace
	}

	o.logger.Error("error processing request session_id=%s error=%s", sessionID, errMsg)
	o.sessions.Update(sessionID, core.SessionUpdate{Status: core.StatusError, Data: data})
	o.sessions.AppendHistory(sessionID, "workflow_error", map[string]any{"error_type": kind})
}

func (o *Orchestrator) register(sessionID string, handle runHandle) {
	o.mu.Lock()
	o.running[sessionID] = handle
	o.mu.Unlock()
	o.updateGauge()
}

// deregister removes the running entry only when it still belongs to the
// given run, so a finished task cannot evict its resumed successor.
func (o *Orchestrator) deregister(sessionID, runID string) {
	o.mu.Lock()
	if handle, ok := o.running[sessionID]; ok && handle.runID == runID {
		delete(o.running, sessionID)
	}
	o.mu.Unlock()
	o.updateGauge()
}

func (o *Orchestrator) updateGauge() {
	if o.metrics == nil {
		return
	}
	o.mu.Lock()
	count := len(o.running)
	o.mu.Unlock()
	o.metrics.SetActiveSessions(count)
}

func fallbackProcedure(serviceName, setting string) string {
	return fmt.Sprintf(`Clinical Procedure: %s
Setting: %s

Procedure information is being compiled. Please refer to the references below for detailed instructions.

Note: This procedure should be performed following standard clinical protocols for %s in a %s environment.`,
		serviceName, setting, serviceName, setting)
}
