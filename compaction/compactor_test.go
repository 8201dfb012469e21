package compaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactor_SmallPayloadUnchanged(t *testing.T) {
	c := NewCompactor()

	data := map[string]any{"service_name": "iv insertion", "extra": "kept"}
	out := c.Compact(data, 0.8)

	assert.Equal(t, data, out)
	assert.Equal(t, "kept", out["extra"], "payloads under the threshold pass through untouched")
}

func TestCompactor_DropsNonEssentialFields(t *testing.T) {
	c := NewCompactor()

	data := map[string]any{
		"service_name":      "wound dressing",
		"setting":           "Home",
		"procedure_details": strings.Repeat("step ", 100),
		"debug_blob":        strings.Repeat("x", 2000),
	}
	out := c.Compact(data, 0.8)

	assert.Equal(t, "wound dressing", out["service_name"])
	assert.Equal(t, "Home", out["setting"])
	assert.NotContains(t, out, "debug_blob")
}

func TestCompactor_TruncatesProcedureDetails(t *testing.T) {
	c := NewCompactor()

	long := strings.Repeat("a", 5000)
	out := c.Compact(map[string]any{"procedure_details": long}, 0.8)

	details, ok := out["procedure_details"].(string)
	require.True(t, ok)
	assert.Len(t, details, maxProcedureDetailsLen+3)
	assert.True(t, strings.HasSuffix(details, "..."))
}

func TestCompactor_CapsReferences(t *testing.T) {
	c := NewCompactor()

	refs := make([]any, 10)
	for i := range refs {
		refs[i] = map[string]any{"url": strings.Repeat("r", 200)}
	}
	out := c.Compact(map[string]any{"references": refs, "service_name": "x"}, 0.8)

	kept, ok := out["references"].([]any)
	require.True(t, ok)
	assert.Len(t, kept, maxReferences)
}

func TestCompactor_Idempotent(t *testing.T) {
	c := NewCompactor()

	refs := make([]any, 8)
	for i := range refs {
		refs[i] = strings.Repeat("ref", 100)
	}
	data := map[string]any{
		"service_name":      "catheter care",
		"procedure_details": strings.Repeat("b", 4000),
		"references":        refs,
		"noise":             strings.Repeat("n", 500),
	}

	once := c.Compact(data, 0.8)
	twice := c.Compact(once, 0.8)

	assert.Equal(t, once, twice, "compaction must be idempotent at a fixed threshold")
}

func TestCompactor_ZeroThresholdUsesConfigured(t *testing.T) {
	c := NewCompactor(func(o *Options) { o.Threshold = 0.001 })

	// anything above 1 byte gets compacted with the configured threshold
	out := c.Compact(map[string]any{"service_name": "x", "dropped": "y"}, 0)
	assert.NotContains(t, out, "dropped")
	assert.Equal(t, "x", out["service_name"])
}
