// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing workflow collaborators and their outputs.
// They are not intended for production usage.
package testutil

import (
	"context"

	"github.com/hupe1980/caremesh/agent"
	"github.com/hupe1980/caremesh/core"
)

// SearchAgent returns a deterministic search collaborator producing a
// contract-complete output.
func SearchAgent() *agent.Func {
	return agent.NewFunc("search_agent", "search", func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{
			"success":      true,
			"service_name": input["service_name"],
			"results": map[string]any{
				"procedures": map[string]any{
					"detailed_procedure": "Step 1: prepare. Step 2: execute.",
					"sources_used":       2,
					"references":         []any{"ref-a", "ref-b"},
				},
			},
		}, nil
	})
}

// ValidationAgent returns a deterministic validation collaborator.
func ValidationAgent() *agent.Func {
	return agent.NewFunc("validation_agent", "validation", func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{
			"success":            true,
			"validation":         map[string]any{"status": "valid"},
			"enhanced_procedure": "Step 1: prepare. Step 2: execute. Step 3: document.",
		}, nil
	})
}

// SynthesisAgent returns a deterministic synthesis collaborator.
func SynthesisAgent() *agent.Func {
	return agent.NewFunc("synthesis_agent", "synthesis", func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{
			"success": true,
			"final_procedure": map[string]any{
				"service_name":      input["service_name"],
				"setting":           input["setting"],
				"procedure_details": "1. Prepare. 2. Execute. 3. Document.",
				"references":        []any{"ref-a"},
			},
		}, nil
	})
}

// Collaborators returns the standard happy-path trio.
func Collaborators() (core.Collaborator, core.Collaborator, core.Collaborator) {
	return SearchAgent(), ValidationAgent(), SynthesisAgent()
}

// FailingAgent returns a collaborator reporting an in-band failure.
func FailingAgent(name, agentType, errMsg string) *agent.Func {
	return agent.NewFunc(name, agentType, func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"success": false, "error": errMsg}, nil
	})
}
