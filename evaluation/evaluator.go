// Package evaluation scores collaborator outputs against their declared
// contracts and aggregates per-step results into workflow-level verdicts.
package evaluation

import (
	"sync"
	"time"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
)

// Score weights for the overall evaluation.
const (
	successWeight      = 0.4
	completenessWeight = 0.4
	errorFreeWeight    = 0.2
)

// Evaluation is the scored verdict for one collaborator output.
type Evaluation struct {
	AgentID         string             `json:"agent_id"`
	AgentType       string             `json:"agent_type"`
	Timestamp       time.Time          `json:"timestamp"`
	Scores          map[string]float64 `json:"scores"`
	OverallScore    float64            `json:"overall_score"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

// WorkflowEvaluation aggregates an ordered list of step outputs.
type WorkflowEvaluation struct {
	Timestamp        time.Time `json:"timestamp"`
	AgentCount       int       `json:"agent_count"`
	SuccessfulAgents int       `json:"successful_agents"`
	OverallSuccess   bool      `json:"overall_success"`
}

// Evaluator scores outputs and keeps an append-only evaluation history.
// Safe for concurrent use: evaluations arrive from parallel workflows.
type Evaluator struct {
	mu          sync.Mutex
	evaluations []Evaluation
	logger      logging.Logger
}

// Options holds configuration overrides for NewEvaluator.
type Options struct {
	Logger logging.Logger
}

// NewEvaluator constructs an Evaluator with an empty history.
func NewEvaluator(optFns ...func(o *Options)) *Evaluator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Evaluator{logger: opts.Logger}
}

// EvaluateOutput computes three sub-scores for a collaborator output:
// success (1.0/0.0 from the success flag), completeness (fraction of
// expected fields present) and error-free (0.0 when an error key is
// present), combined as 0.4*success + 0.4*completeness + 0.2*error_free.
// Recommendations are emitted when the overall score drops below 0.7 or
// completeness below 0.8. Every evaluation is appended to the history.
func (e *Evaluator) EvaluateOutput(agentID, agentType string, output map[string]any, expectedFields []string) Evaluation {
	ev := Evaluation{
		AgentID:   agentID,
		AgentType: agentType,
		Timestamp: time.Now().UTC(),
		Scores:    make(map[string]float64, 3),
	}

	if core.Success(output) {
		ev.Scores["success"] = 1.0
	} else {
		ev.Scores["success"] = 0.0
	}

	ev.Scores["completeness"] = completeness(output, expectedFields)

	if _, hasError := output["error"]; hasError {
		ev.Scores["error_free"] = 0.0
	} else {
		ev.Scores["error_free"] = 1.0
	}

	ev.OverallScore = ev.Scores["success"]*successWeight +
		ev.Scores["completeness"]*completenessWeight +
		ev.Scores["error_free"]*errorFreeWeight

	if ev.OverallScore < 0.7 {
		ev.Recommendations = append(ev.Recommendations, "Consider improving output quality or error handling")
	}
	if ev.Scores["completeness"] < 0.8 {
		ev.Recommendations = append(ev.Recommendations, "Output may be missing important fields")
	}

	e.mu.Lock()
	e.evaluations = append(e.evaluations, ev)
	e.mu.Unlock()

	e.logger.Info("agent evaluated agent_id=%s score=%.2f", agentID, ev.OverallScore)

	return ev
}

// EvaluateWorkflow aggregates success counts and the overall boolean AND
// across an ordered list of step outputs.
func (e *Evaluator) EvaluateWorkflow(results []map[string]any) WorkflowEvaluation {
	we := WorkflowEvaluation{
		Timestamp:      time.Now().UTC(),
		AgentCount:     len(results),
		OverallSuccess: len(results) > 0,
	}
	for _, r := range results {
		if core.Success(r) {
			we.SuccessfulAgents++
		} else {
			we.OverallSuccess = false
		}
	}
	return we
}

// History returns the most recent limit evaluations, oldest first. A
// non-positive limit returns the full history.
func (e *Evaluator) History(limit int) []Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := e.evaluations
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]Evaluation, len(src))
	copy(out, src)
	return out
}

func completeness(output map[string]any, expected []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	present := 0
	for _, field := range expected {
		if _, ok := output[field]; ok {
			present++
		}
	}
	return float64(present) / float64(len(expected))
}
