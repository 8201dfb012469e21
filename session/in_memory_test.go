package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/caremesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	store := NewInMemoryStore()

	id := store.Create(map[string]any{"service_name": "wound dressing"})
	require.NotEmpty(t, id)

	sess, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, core.StatusCreated, sess.Status)
	assert.Equal(t, "wound dressing", sess.Data["service_name"])

	// returned session is a clone
	sess.Data["service_name"] = "changed"
	again, _ := store.Get(id)
	assert.Equal(t, "wound dressing", again.Data["service_name"])

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestInMemoryStore_UpdateMergesData(t *testing.T) {
	store := NewInMemoryStore()
	id := store.Create(map[string]any{"a": 1})

	ok := store.Update(id, core.SessionUpdate{Data: map[string]any{"b": 2}})
	require.True(t, ok)

	sess, _ := store.Get(id)
	assert.Equal(t, 1, sess.Data["a"], "unrelated keys must survive an update")
	assert.Equal(t, 2, sess.Data["b"])

	ok = store.Update(id, core.SessionUpdate{State: map[string]any{"step": "search"}})
	require.True(t, ok)
	sess, _ = store.Get(id)
	assert.Equal(t, "search", sess.State["step"])
}

func TestInMemoryStore_UpdateUnknownID(t *testing.T) {
	store := NewInMemoryStore()
	assert.False(t, store.Update("nope", core.SessionUpdate{Status: core.StatusProcessing}))
	assert.False(t, store.AppendHistory("nope", "x", nil))
	assert.False(t, store.Delete("nope"))
}

func TestInMemoryStore_StatusMachine(t *testing.T) {
	store := NewInMemoryStore()
	id := store.Create(nil)

	// created -> completed is not a legal transition
	assert.False(t, store.Update(id, core.SessionUpdate{Status: core.StatusCompleted}))
	sess, _ := store.Get(id)
	assert.Equal(t, core.StatusCreated, sess.Status, "rejected update must leave status unchanged")

	require.True(t, store.Update(id, core.SessionUpdate{Status: core.StatusProcessing}))
	require.True(t, store.Update(id, core.SessionUpdate{Status: core.StatusPaused}))
	require.True(t, store.Update(id, core.SessionUpdate{Status: core.StatusProcessing}))
	require.True(t, store.Update(id, core.SessionUpdate{Status: core.StatusCompleted}))

	// terminal states stay terminal
	assert.False(t, store.Update(id, core.SessionUpdate{Status: core.StatusProcessing}))
}

func TestInMemoryStore_UpdatedAtStrictlyIncreases(t *testing.T) {
	store := NewInMemoryStore()
	id := store.Create(nil)

	prev, _ := store.Get(id)
	last := prev.UpdatedAt
	for i := 0; i < 50; i++ {
		require.True(t, store.Update(id, core.SessionUpdate{Data: map[string]any{"i": i}}))
		sess, _ := store.Get(id)
		assert.True(t, sess.UpdatedAt.After(last), "UpdatedAt must strictly increase")
		last = sess.UpdatedAt
	}
}

func TestInMemoryStore_History(t *testing.T) {
	store := NewInMemoryStore()
	id := store.Create(nil)

	require.True(t, store.AppendHistory(id, "workflow_started", map[string]any{"service_name": "iv insertion"}))
	require.True(t, store.AppendHistory(id, "workflow_completed", nil))

	sess, _ := store.Get(id)
	require.Len(t, sess.History, 2)
	assert.Equal(t, "workflow_started", sess.History[0].Action)
	assert.Equal(t, "workflow_completed", sess.History[1].Action)
	assert.False(t, sess.History[1].Timestamp.Before(sess.History[0].Timestamp))
}

func TestInMemoryStore_DeleteAndList(t *testing.T) {
	store := NewInMemoryStore()
	a := store.Create(nil)
	b := store.Create(nil)

	assert.ElementsMatch(t, []string{a, b}, store.List())
	assert.True(t, store.Delete(a))
	assert.False(t, store.Delete(a))
	assert.Equal(t, []string{b}, store.List())
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryStore_ConcurrentUpdates(t *testing.T) {
	store := NewInMemoryStore()
	id := store.Create(nil)
	require.True(t, store.Update(id, core.SessionUpdate{Status: core.StatusProcessing}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Update(id, core.SessionUpdate{Data: map[string]any{"k": n}})
			store.AppendHistory(id, "tick", nil)
		}(i)
	}
	wg.Wait()

	sess, ok := store.Get(id)
	require.True(t, ok)
	assert.Len(t, sess.History, 20)
	assert.Equal(t, core.StatusProcessing, sess.Status)
}
