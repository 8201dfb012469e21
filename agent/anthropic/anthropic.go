// Package anthropic provides collaborators backed by the Anthropic Messages
// API. The generic Agent mirrors the openai subpackage; NewValidation shapes
// the model output into the validation step contract.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/caremesh/agent"
	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
)

// Options configures the Anthropic collaborator (model id, temperature,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string

	// Instructions is sent as the system prompt when non-empty.
	Instructions string

	Logger logging.Logger
}

// Agent is a collaborator that delegates its work to a Claude model. API
// failures are reported in-band as success=false so the workflow can
// evaluate and record them like any other step failure.
type Agent struct {
	agent.Base
	client *anthropic.Client
	opts   Options
}

// New creates a model-backed collaborator using the official client.
func New(name, agentType string, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Agent{
		Base:   agent.NewBase(name, agentType, opts.Logger),
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a model-backed collaborator from an existing client.
func NewFromClient(client *anthropic.Client, name, agentType string, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Agent{
		Base:   agent.NewBase(name, agentType, opts.Logger),
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   2048,
	}
}

// Execute implements core.Collaborator. The input map is rendered to JSON
// and sent as the user message.
func (a *Agent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	a.SetStatus("running")
	defer a.SetStatus("idle")

	params := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(renderInput(input)))},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
	}
	if a.opts.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.opts.Instructions}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.LogAction("model_error", map[string]any{"error": err.Error()})
		return map[string]any{"success": false, "error": fmt.Sprintf("anthropic api error: %v", err)}, nil
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return map[string]any{"success": false, "error": "anthropic api returned no text content"}, nil
	}
	a.LogAction("model_response", map[string]any{"model": a.opts.Model, "chars": len(content)})

	return map[string]any{"success": true, "content": content}, nil
}

const validationInstructions = `You are a clinical procedure validation assistant.
Review the provided search results for the requested service and care setting.
Point out missing prerequisites, safety concerns and setting-specific
adjustments, then restate the procedure with your corrections applied.`

// NewValidation returns a validation collaborator whose output matches the
// workflow validation contract: success, a validation map with the review
// notes, and the enhanced_procedure text.
func NewValidation(optFns ...func(o *Options)) core.Collaborator {
	inner := New("validation_agent", "validation", append([]func(o *Options){func(o *Options) {
		o.Instructions = validationInstructions
	}}, optFns...)...)

	return agent.NewFunc("validation_agent", "validation", func(ctx context.Context, input map[string]any) (map[string]any, error) {
		out, err := inner.Execute(ctx, input)
		if err != nil || !core.Success(out) {
			return out, err
		}
		content, _ := out["content"].(string)
		return map[string]any{
			"success":            true,
			"validation":         map[string]any{"status": "reviewed", "notes": content},
			"enhanced_procedure": content,
		}, nil
	})
}

// renderInput produces a deterministic prompt body from the input map.
func renderInput(input map[string]any) string {
	b, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", input)
	}
	return string(b)
}

// Interface compliance (compile-time assertion)
var _ core.Collaborator = (*Agent)(nil)
