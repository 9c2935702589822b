package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/empathia/store"
)

func TestHistoryAppendAndBound(t *testing.T) {
	ctx := context.Background()
	s := store.New(nil, store.Config{})
	h := NewHistory(s, 5)

	t.Run("AppendAndCurrent", func(t *testing.T) {
		count, err := h.Append(ctx, "conv-1", Turn{UserText: "hello", AssistantText: "hi"})
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		turns := h.Current(ctx, "conv-1")
		require.Len(t, turns, 1)
		assert.Equal(t, "hello", turns[0].UserText)
		assert.False(t, turns[0].Timestamp.IsZero())
	})

	t.Run("FIFOEviction", func(t *testing.T) {
		for i := 2; i <= 8; i++ {
			_, err := h.Append(ctx, "conv-1", Turn{UserText: fmt.Sprintf("msg %d", i), AssistantText: "ok"})
			require.NoError(t, err)
		}

		turns := h.Current(ctx, "conv-1")
		require.Len(t, turns, 5)
		assert.Equal(t, "msg 4", turns[0].UserText)
		assert.Equal(t, "msg 8", turns[4].UserText)
	})

	t.Run("CounterOutlivesEviction", func(t *testing.T) {
		assert.Equal(t, 8, h.TurnCount(ctx, "conv-1"))
	})
}

func TestHistoryInvalidInput(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.New(nil, store.Config{}), 5)

	_, err := h.Append(ctx, "", Turn{UserText: "x"})
	assert.Error(t, err)

	_, err = h.Append(ctx, "conv-1", Turn{})
	assert.Error(t, err)
	assert.Empty(t, h.Current(ctx, "conv-1"))
}

func TestHistorySurvivesRestartWithDurableBackend(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.NewMockDriver(), store.Config{})
	h := NewHistory(s, 10)

	for i := 0; i < 3; i++ {
		_, err := h.Append(ctx, "conv-1", Turn{UserText: fmt.Sprintf("m%d", i), AssistantText: "r"})
		require.NoError(t, err)
	}

	s.Forget("conv-1")

	assert.Len(t, h.Load(ctx, "conv-1"), 3)
	assert.Equal(t, 3, h.TurnCount(ctx, "conv-1"))
}

func TestHistoryTurnsOn(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.New(nil, store.Config{}), 10)

	day1 := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := h.Append(ctx, "conv-1", Turn{UserText: "evening", AssistantText: "r", Timestamp: day1})
	require.NoError(t, err)
	_, err = h.Append(ctx, "conv-1", Turn{UserText: "morning", AssistantText: "r", Timestamp: day2})
	require.NoError(t, err)

	selected := h.TurnsOn(ctx, "conv-1", "2026-03-02", time.UTC)
	require.Len(t, selected, 1)
	assert.Equal(t, "morning", selected[0].UserText)

	// A timezone east of UTC can move a late-evening turn to the next day.
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	selected = h.TurnsOn(ctx, "conv-1", "2026-03-02", shanghai)
	assert.Len(t, selected, 2)
}
