package caremesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/internal/testutil"
)

func TestProcessSync(t *testing.T) {
	search, validation, synthesis := testutil.Collaborators()
	mesh := New(search, validation, synthesis)

	sess, err := mesh.ProcessSync(context.Background(), "Wound Care", "hospital")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, sess.Status)

	result, ok := sess.Data["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1. Prepare. 2. Execute. 3. Document.", result["procedure_details"])
}

func TestProcessAsync(t *testing.T) {
	search, validation, synthesis := testutil.Collaborators()
	mesh := New(search, validation, synthesis)

	sessionID := mesh.Process(context.Background(), "Wound Care", "home")
	require.NotEmpty(t, sessionID)

	mesh.Wait()

	sess, ok := mesh.Session(sessionID)
	require.True(t, ok)
	assert.Equal(t, core.StatusCompleted, sess.Status)
}

func TestProcessSyncCollaboratorFailure(t *testing.T) {
	_, validation, synthesis := testutil.Collaborators()
	search := testutil.FailingAgent("search_agent", "search", "no results")
	mesh := New(search, validation, synthesis)

	sess, err := mesh.ProcessSync(context.Background(), "Wound Care", "hospital")
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, sess.Status)
	assert.Equal(t, "search_failed", sess.Data["error_type"])
}

func TestMemoryBankSizeOption(t *testing.T) {
	search, validation, synthesis := testutil.Collaborators()
	mesh := New(search, validation, synthesis, func(o *Options) {
		o.MemoryBankSize = 1
	})

	_, err := mesh.ProcessSync(context.Background(), "Wound Care", "hospital")
	require.NoError(t, err)

	// Capacity 1 keeps only the completion summary.
	recent := mesh.Orchestrator().Memory().Recent(10)
	require.Len(t, recent, 1)
	assert.Contains(t, recent[0].Content, "Completed procedure lookup")
}
