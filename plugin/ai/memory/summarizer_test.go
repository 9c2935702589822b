package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/store"
)

func testConfig() ai.StaticConfig {
	return ai.StaticConfig{GenerationConfig: ai.GenerationConfig{
		Params: ai.GenerationParams{Model: "test-model", MaxOutputTokens: 256, Temperature: 0.5},
	}}
}

func seedTurns(t *testing.T, h *History, conversationID string, n int) int {
	t.Helper()
	ctx := context.Background()
	count := 0
	for i := 0; i < n; i++ {
		var err error
		count, err = h.Append(ctx, conversationID, Turn{
			UserText:      fmt.Sprintf("user message %d", i+1),
			AssistantText: fmt.Sprintf("reply %d", i+1),
		})
		require.NoError(t, err)
	}
	return count
}

func TestCategorySummarizerTrigger(t *testing.T) {
	ctx := context.Background()
	s := store.New(nil, store.Config{})
	h := NewHistory(s, 50)
	llm := ai.NewMockLLM("A brief summary.")
	c := NewCategorySummarizer(s, llm, testConfig(), h, 10, 5)

	t.Run("NotEnoughTurns", func(t *testing.T) {
		count := seedTurns(t, h, "conv-1", 4)
		assert.False(t, c.ShouldRun(ctx, "conv-1", count))
	})

	t.Run("FiresAtInterval", func(t *testing.T) {
		count := seedTurns(t, h, "conv-1", 6) // total 10
		assert.True(t, c.ShouldRun(ctx, "conv-1", count))
	})

	t.Run("RunAdvancesMarker", func(t *testing.T) {
		llm.Queue("Work").Queue("Talked about the new job; felt hopeful.")
		require.NoError(t, c.Run(ctx, "conv-1", 10))

		assert.Equal(t, 10, c.Marker(ctx, "conv-1"))
		summaries := c.Summaries(ctx, "conv-1")
		require.Len(t, summaries["Work"], 1)
		assert.Equal(t, 10, summaries["Work"][0].TurnCountAtGeneration)
	})

	t.Run("QuietUntilNextInterval", func(t *testing.T) {
		assert.False(t, c.ShouldRun(ctx, "conv-1", 15))
		assert.True(t, c.ShouldRun(ctx, "conv-1", 20))
	})
}

func TestCategorySummarizerClassification(t *testing.T) {
	ctx := context.Background()
	s := store.New(nil, store.Config{})
	h := NewHistory(s, 50)

	t.Run("ClassifierFailureDefaultsToOther", func(t *testing.T) {
		llm := ai.NewMockLLM("")
		llm.QueueError(engerr.RateLimitExceeded("throttled")).Queue("A summary anyway.")
		c := NewCategorySummarizer(s, llm, testConfig(), h, 10, 5)

		seedTurns(t, h, "conv-other", 10)
		require.NoError(t, c.Run(ctx, "conv-other", 10))
		assert.Len(t, c.Summaries(ctx, "conv-other")["Other"], 1)
	})

	t.Run("NoisyAnswerNormalized", func(t *testing.T) {
		llm := ai.NewMockLLM("")
		llm.Queue(` "health." `).Queue("Summary text.")
		c := NewCategorySummarizer(s, llm, testConfig(), h, 10, 5)

		seedTurns(t, h, "conv-noisy", 10)
		require.NoError(t, c.Run(ctx, "conv-noisy", 10))
		assert.Len(t, c.Summaries(ctx, "conv-noisy")["Health"], 1)
	})
}

func TestCategorySummarizerCapAndFIFO(t *testing.T) {
	ctx := context.Background()
	s := store.New(nil, store.Config{})
	h := NewHistory(s, 50)
	llm := ai.NewMockLLM("")
	c := NewCategorySummarizer(s, llm, testConfig(), h, 10, 3)

	seedTurns(t, h, "conv-1", 10)
	for i := 0; i < 5; i++ {
		llm.Queue("Goals").Queue(fmt.Sprintf("summary %d", i))
		require.NoError(t, c.Run(ctx, "conv-1", 10+i*10))
	}

	entries := c.Summaries(ctx, "conv-1")["Goals"]
	require.Len(t, entries, 3)
	assert.Equal(t, "summary 2", entries[0].Text) // oldest two evicted
	assert.Equal(t, "summary 4", entries[2].Text)
}

func TestCategorySummarizerFailureLeavesMarker(t *testing.T) {
	ctx := context.Background()
	s := store.New(nil, store.Config{})
	h := NewHistory(s, 50)
	llm := ai.NewMockLLM("")
	c := NewCategorySummarizer(s, llm, testConfig(), h, 10, 5)

	seedTurns(t, h, "conv-1", 10)

	// Classifier succeeds, summarizer is rate limited: the pass aborts.
	llm.Queue("Work").QueueError(engerr.RateLimitExceeded("throttled"))
	err := c.Run(ctx, "conv-1", 10)
	require.Error(t, err)
	assert.True(t, engerr.IsGenerationFailure(err))

	assert.Equal(t, 0, c.Marker(ctx, "conv-1"))
	assert.Empty(t, c.Summaries(ctx, "conv-1"))

	// The retry on the next qualifying turn succeeds and advances the marker.
	assert.True(t, c.ShouldRun(ctx, "conv-1", 10))
	llm.Queue("Work").Queue("Recovered summary.")
	require.NoError(t, c.Run(ctx, "conv-1", 10))
	assert.Equal(t, 10, c.Marker(ctx, "conv-1"))
}

func TestCategorySummarizerMarkerMonotonic(t *testing.T) {
	ctx := context.Background()
	s := store.New(nil, store.Config{})
	h := NewHistory(s, 50)
	llm := ai.NewMockLLM("text")
	c := NewCategorySummarizer(s, llm, testConfig(), h, 10, 5)

	seedTurns(t, h, "conv-1", 10)
	require.NoError(t, c.Run(ctx, "conv-1", 20))
	assert.Equal(t, 20, c.Marker(ctx, "conv-1"))

	// A stale overlapping pass at a lower count must not move it back.
	require.NoError(t, c.Run(ctx, "conv-1", 10))
	assert.Equal(t, 20, c.Marker(ctx, "conv-1"))
}
