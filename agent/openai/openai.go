// Package openai provides collaborators backed by the OpenAI Chat
// Completions API. The generic Agent turns a workflow input map into a
// prompt and returns the generated text; NewSynthesis shapes that text
// into the synthesis step contract.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/caremesh/agent"
	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
)

// Options configure the OpenAI collaborator.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64

	// Instructions is sent as the system message when non-empty.
	Instructions string

	Logger logging.Logger
}

// Agent is a collaborator that delegates its work to an OpenAI chat model.
// The raw model output is returned under the "content" key; API failures
// are reported in-band as success=false rather than as Go errors so the
// workflow can evaluate and record them like any other step failure.
type Agent struct {
	agent.Base
	client *openai.Client
	opts   Options
}

// New creates a model-backed collaborator using the default client
// (API key from the environment).
func New(name, agentType string, optFns ...func(o *Options)) *Agent {
	client := openai.NewClient()
	return NewFromClient(&client, name, agentType, optFns...)
}

// NewFromClient creates a model-backed collaborator from an existing client.
func NewFromClient(client *openai.Client, name, agentType string, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.3,
		MaxCompletionTokens: 2048,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		Base:   agent.NewBase(name, agentType, opts.Logger),
		client: client,
		opts:   opts,
	}
}

// Execute implements core.Collaborator. The input map is rendered to JSON
// and sent as the user message.
func (a *Agent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	a.SetStatus("running")
	defer a.SetStatus("idle")

	var messages []openai.ChatCompletionMessageParamUnion
	if a.opts.Instructions != "" {
		messages = append(messages, openai.SystemMessage(a.opts.Instructions))
	}
	messages = append(messages, openai.UserMessage(renderInput(input)))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               a.opts.Model,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.LogAction("model_error", map[string]any{"error": err.Error()})
		return map[string]any{"success": false, "error": fmt.Sprintf("openai api error: %v", err)}, nil
	}
	if len(resp.Choices) == 0 {
		return map[string]any{"success": false, "error": "openai api returned no choices"}, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	a.LogAction("model_response", map[string]any{"model": a.opts.Model, "chars": len(content)})

	return map[string]any{"success": true, "content": content}, nil
}

const synthesisInstructions = `You are a clinical procedure synthesis assistant.
Combine the provided search results, validation notes and prior context into a
single clear, step-by-step procedure description for the requested service and
care setting. Respond with the procedure text only.`

// NewSynthesis returns a synthesis collaborator whose output matches the
// workflow synthesis contract: success plus a final_procedure map carrying
// the generated procedure_details.
func NewSynthesis(optFns ...func(o *Options)) core.Collaborator {
	inner := New("synthesis_agent", "synthesis", append([]func(o *Options){func(o *Options) {
		o.Instructions = synthesisInstructions
	}}, optFns...)...)

	return agent.NewFunc("synthesis_agent", "synthesis", func(ctx context.Context, input map[string]any) (map[string]any, error) {
		out, err := inner.Execute(ctx, input)
		if err != nil || !core.Success(out) {
			return out, err
		}
		content, _ := out["content"].(string)
		final := map[string]any{
			"service_name":      input["service_name"],
			"setting":           input["setting"],
			"procedure_details": content,
		}
		if refs, ok := input["references"]; ok {
			final["references"] = refs
		}
		return map[string]any{"success": true, "final_procedure": final}, nil
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
