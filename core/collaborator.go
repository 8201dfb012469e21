package core

import (
	"context"

	"github.com/google/uuid"
)

// Collaborator is the uniform execution contract consumed by the
// orchestrator. Implementations receive an open input map and return an open
// output map that always contains a boolean "success" key; in-band failures
// additionally carry an "error" string. A non-nil Go error is reserved for
// unexpected conditions (including context cancellation) and is handled at
// the workflow boundary, not by branching.
type Collaborator interface {
	// Name returns the stable identifier of the collaborator (used as the
	// receiver id on the message bus).
	Name() string

	// Type categorizes the collaborator (e.g. "search", "validation",
	// "synthesis").
	Type() string

	// Execute runs the collaborator against the provided input. It must
	// respect ctx cancellation at its suspension points.
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Success reports whether an output map carries success=true.
func Success(output map[string]any) bool {
	v, ok := output["success"].(bool)
	return ok && v
}

// ErrorText extracts the in-band error string from an output map, falling
// back to the provided default when absent.
func ErrorText(output map[string]any, fallback string) string {
	if s, ok := output["error"].(string); ok && s != "" {
		return s
	}
	return fallback
}

// NestedMap returns output[key] as a map when present, nil otherwise.
// Collaborator outputs are open maps so nested structures are tolerated but
// never required.
func NestedMap(output map[string]any, key string) map[string]any {
	m, _ := output[key].(map[string]any)
	return m
}

// NewID returns a new unique identifier (UUID v4 string).
func NewID() string { return uuid.NewString() }
