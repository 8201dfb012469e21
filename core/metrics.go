package core

import "time"

// MetricsRecorder is the optional sink for operational metrics emitted by
// the orchestrator and stores. A nil recorder disables metrics entirely;
// callers must tolerate that.
type MetricsRecorder interface {
	// RecordAgentOperation records one collaborator step with its measured
	// duration and terminal status ("success" or "error").
	RecordAgentOperation(agentType, operation, status string, duration time.Duration)

	// SetActiveSessions updates the gauge of sessions currently processing.
	SetActiveSessions(count int)

	// RecordMemoryOperation counts a memory bank operation ("add",
	// "retrieve", "evict", "clear").
	RecordMemoryOperation(operation string)
}
