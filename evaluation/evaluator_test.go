package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_EvaluateOutput_AllGood(t *testing.T) {
	e := NewEvaluator()

	out := map[string]any{"success": true, "results": map[string]any{}, "service_name": "iv insertion"}
	ev := e.EvaluateOutput("search-agent", "search", out, []string{"success", "results", "service_name"})

	assert.Equal(t, 1.0, ev.Scores["success"])
	assert.Equal(t, 1.0, ev.Scores["completeness"])
	assert.Equal(t, 1.0, ev.Scores["error_free"])
	assert.InDelta(t, 1.0, ev.OverallScore, 1e-9)
	assert.Empty(t, ev.Recommendations)
}

func TestEvaluator_EvaluateOutput_Failure(t *testing.T) {
	e := NewEvaluator()

	out := map[string]any{"success": false, "error": "backend unreachable"}
	ev := e.EvaluateOutput("search-agent", "search", out, []string{"success", "results", "service_name"})

	assert.Equal(t, 0.0, ev.Scores["success"])
	assert.InDelta(t, 1.0/3.0, ev.Scores["completeness"], 1e-9)
	assert.Equal(t, 0.0, ev.Scores["error_free"])
	assert.InDelta(t, 0.4/3.0, ev.OverallScore, 1e-9)

	require.Len(t, ev.Recommendations, 2)
	assert.Contains(t, ev.Recommendations[0], "output quality")
	assert.Contains(t, ev.Recommendations[1], "missing important fields")
}

func TestEvaluator_EvaluateOutput_NoExpectedFields(t *testing.T) {
	e := NewEvaluator()
	ev := e.EvaluateOutput("a", "x", map[string]any{"success": true}, nil)
	assert.Equal(t, 1.0, ev.Scores["completeness"])
	assert.InDelta(t, 1.0, ev.OverallScore, 1e-9)
}

func TestEvaluator_EvaluateWorkflow(t *testing.T) {
	e := NewEvaluator()

	we := e.EvaluateWorkflow([]map[string]any{
		{"success": true},
		{"success": true},
		{"success": false},
	})
	assert.Equal(t, 3, we.AgentCount)
	assert.Equal(t, 2, we.SuccessfulAgents)
	assert.False(t, we.OverallSuccess)

	allGood := e.EvaluateWorkflow([]map[string]any{{"success": true}, {"success": true}})
	assert.True(t, allGood.OverallSuccess)

	empty := e.EvaluateWorkflow(nil)
	assert.False(t, empty.OverallSuccess)
}

func TestEvaluator_History(t *testing.T) {
	e := NewEvaluator()
	for i := 0; i < 5; i++ {
		e.EvaluateOutput("a", "x", map[string]any{"success": true}, nil)
	}

	assert.Len(t, e.History(0), 5)

	last2 := e.History(2)
	require.Len(t, last2, 2)
	assert.False(t, last2[1].Timestamp.Before(last2[0].Timestamp))
}
