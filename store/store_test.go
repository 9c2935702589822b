package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCacheOnly(t *testing.T) {
	ctx := context.Background()
	s := New(nil, Config{})

	t.Run("MissingKey", func(t *testing.T) {
		_, ok := s.Get(ctx, "conv-1", NamespaceHistory)
		assert.False(t, ok)
	})

	t.Run("SetThenGet", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "conv-1", NamespaceHistory, []byte("turns")))
		v, ok := s.Get(ctx, "conv-1", NamespaceHistory)
		assert.True(t, ok)
		assert.Equal(t, []byte("turns"), v)
	})

	t.Run("EmptyConversationID", func(t *testing.T) {
		assert.Error(t, s.Set(ctx, "", NamespaceHistory, []byte("x")))
		_, ok := s.Get(ctx, "", NamespaceHistory)
		assert.False(t, ok)
	})

	t.Run("RestartLosesState", func(t *testing.T) {
		s.Forget("conv-1")
		_, ok := s.Get(ctx, "conv-1", NamespaceHistory)
		assert.False(t, ok)
	})

	assert.False(t, s.HasDurableBackend())
}

func TestStoreHydratesFromDurableBackend(t *testing.T) {
	ctx := context.Background()
	driver := NewMockDriver()
	s := New(driver, Config{})

	require.NoError(t, s.Set(ctx, "conv-1", NamespaceDiary, []byte("entry")))

	// Simulated restart: in-process tier empty, durable backend intact.
	s.Forget("conv-1")

	v, ok := s.Get(ctx, "conv-1", NamespaceDiary)
	require.True(t, ok)
	assert.Equal(t, []byte("entry"), v)

	// Second read served from cache, without touching the driver again.
	calls := driver.GetCalls
	_, ok = s.Get(ctx, "conv-1", NamespaceDiary)
	assert.True(t, ok)
	assert.Equal(t, calls, driver.GetCalls)
}

func TestStoreSurvivesDurableFailures(t *testing.T) {
	ctx := context.Background()
	driver := NewMockDriver()
	driver.FailSets = true
	driver.FailGets = true
	s := New(driver, Config{})

	// Durable write failure is swallowed; the cache tier still serves reads.
	require.NoError(t, s.Set(ctx, "conv-1", NamespaceClinicalNotes, []byte("note")))
	v, ok := s.Get(ctx, "conv-1", NamespaceClinicalNotes)
	assert.True(t, ok)
	assert.Equal(t, []byte("note"), v)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats["durable_write_failures"])
}

func TestStoreJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(nil, Config{})

	type marker struct {
		Count int `json:"count"`
	}

	require.NoError(t, s.SetJSON(ctx, "conv-1", NamespaceSummaryMarker, marker{Count: 10}))

	var m marker
	ok := s.GetJSON(ctx, "conv-1", NamespaceSummaryMarker, &m)
	require.True(t, ok)
	assert.Equal(t, 10, m.Count)
}

func TestStoreCorruptValueTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	s := New(nil, Config{})

	require.NoError(t, s.Set(ctx, "conv-1", NamespaceDiaryMarker, []byte("{not json")))

	var dest map[string]any
	ok := s.GetJSON(ctx, "conv-1", NamespaceDiaryMarker, &dest)
	assert.False(t, ok)
}

func TestNamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := New(NewMockDriver(), Config{})

	require.NoError(t, s.Set(ctx, "conv-1", NamespaceHistory, []byte("h")))
	require.NoError(t, s.Set(ctx, "conv-1", NamespaceDiary, []byte("d")))

	v, ok := s.Get(ctx, "conv-1", NamespaceHistory)
	require.True(t, ok)
	assert.Equal(t, []byte("h"), v)
	v, ok = s.Get(ctx, "conv-1", NamespaceDiary)
	require.True(t, ok)
	assert.Equal(t, []byte("d"), v)
}
