package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/store"
)

func TestServiceTenthTurnFiresAllGenerators(t *testing.T) {
	ctx := context.Background()
	llm := ai.NewMockLLM("generated text")
	svc := NewService(store.New(nil, store.Config{}), llm, testConfig(), Config{})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	count := 0
	for i := 0; i < 9; i++ {
		var err error
		count, err = svc.AppendTurn(ctx, "conv-1", Turn{
			UserText:      fmt.Sprintf("message %d", i+1),
			AssistantText: "reply",
			Timestamp:     now,
		})
		require.NoError(t, err)
		svc.RunTriggers(ctx, "conv-1", count, now)
	}

	// Nine turns in: no summary or note yet, but the diary fired on the
	// first turn of the day.
	assert.Equal(t, 9, svc.TurnCount(ctx, "conv-1"))
	assert.Empty(t, svc.CategorySummaries(ctx, "conv-1"))
	assert.Empty(t, svc.ClinicalNotes(ctx, "conv-1"))
	require.Len(t, svc.DiaryEntries(ctx, "conv-1"), 1)

	llm.Queue("Relationships").Queue("Summary of the last stretch.").Queue("Session note.")
	count, err := svc.AppendTurn(ctx, "conv-1", Turn{
		UserText:      "message 10",
		AssistantText: "reply",
		Timestamp:     now,
	})
	require.NoError(t, err)
	require.Equal(t, 10, count)
	svc.RunTriggers(ctx, "conv-1", count, now)

	summaries := svc.CategorySummaries(ctx, "conv-1")
	require.Len(t, summaries["Relationships"], 1)
	assert.Equal(t, 10, summaries["Relationships"][0].TurnCountAtGeneration)

	notes := svc.ClinicalNotes(ctx, "conv-1")
	require.Len(t, notes, 1)
	assert.Equal(t, 1, notes[0].SessionNumber)

	// Re-running the triggers at the same count changes nothing.
	svc.RunTriggers(ctx, "conv-1", count, now)
	assert.Len(t, svc.CategorySummaries(ctx, "conv-1")["Relationships"], 1)
	assert.Len(t, svc.ClinicalNotes(ctx, "conv-1"), 1)
}

func TestServiceBackgroundFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	llm := ai.NewMockLLM("text")
	svc := NewService(store.New(nil, store.Config{}), llm, testConfig(), Config{})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	count := 0
	for i := 0; i < 10; i++ {
		var err error
		count, err = svc.AppendTurn(ctx, "conv-1", Turn{
			UserText: fmt.Sprintf("m%d", i+1), AssistantText: "r", Timestamp: now,
		})
		require.NoError(t, err)
	}

	llm.Err = errors.New("provider unreachable")
	assert.NotPanics(t, func() { svc.RunTriggers(ctx, "conv-1", count, now) })
	assert.Empty(t, svc.CategorySummaries(ctx, "conv-1"))
	assert.Empty(t, svc.ClinicalNotes(ctx, "conv-1"))

	// The triggers stay armed and succeed once the provider recovers.
	llm.Err = nil
	svc.RunTriggers(ctx, "conv-1", count, now)
	assert.Len(t, svc.ClinicalNotes(ctx, "conv-1"), 1)
	assert.Len(t, svc.DiaryEntries(ctx, "conv-1"), 1)
}

func TestServiceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	driver := store.NewMockDriver()
	s := store.New(driver, store.Config{})
	llm := ai.NewMockLLM("text")
	svc := NewService(s, llm, testConfig(), Config{})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	count := 0
	for i := 0; i < 10; i++ {
		var err error
		count, err = svc.AppendTurn(ctx, "conv-1", Turn{
			UserText: fmt.Sprintf("m%d", i+1), AssistantText: "r", Timestamp: now,
		})
		require.NoError(t, err)
	}
	svc.RunTriggers(ctx, "conv-1", count, now)
	require.Len(t, svc.ClinicalNotes(ctx, "conv-1"), 1)

	// Simulate a restart: fresh process tier over the same durable driver.
	s.Forget("conv-1")
	svc2 := NewService(s, llm, testConfig(), Config{})

	assert.Equal(t, 10, svc2.TurnCount(ctx, "conv-1"))
	assert.Len(t, svc2.RecentTurns(ctx, "conv-1"), 10)
	assert.Len(t, svc2.ClinicalNotes(ctx, "conv-1"), 1)

	// Cadence state survived too: the satisfied triggers do not re-fire.
	svc2.RunTriggers(ctx, "conv-1", 10, now)
	assert.Len(t, svc2.ClinicalNotes(ctx, "conv-1"), 1)
	assert.Len(t, svc2.DiaryEntries(ctx, "conv-1"), 1)
}

func TestServiceSweepClosesOutPreviousDay(t *testing.T) {
	ctx := context.Background()
	llm := ai.NewMockLLM("entry text")
	svc := NewService(store.New(nil, store.Config{}), llm, testConfig(), Config{})

	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		count, err := svc.AppendTurn(ctx, "conv-1", Turn{
			UserText:      fmt.Sprintf("message %d", i+1),
			AssistantText: "reply",
			Timestamp:     day.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		svc.RunTriggers(ctx, "conv-1", count, day.Add(time.Duration(i)*time.Hour))
	}

	// The turn path wrote the day's entry on the first turn.
	entries := svc.DiaryEntries(ctx, "conv-1")
	require.Len(t, entries, 1)
	require.Equal(t, 1, entries[0].TurnCount)

	// The midnight sweep regenerates it from the full day.
	sweepAt := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	require.NoError(t, svc.SweepDiary(ctx, "conv-1", sweepAt))

	entries = svc.DiaryEntries(ctx, "conv-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03-01", entries[0].Date)
	assert.Equal(t, 6, entries[0].TurnCount)

	// A repeated sweep has nothing left to do.
	calls := llm.CallCount
	require.NoError(t, svc.SweepDiary(ctx, "conv-1", sweepAt))
	assert.Equal(t, calls, llm.CallCount)
}

func TestServiceRunDiaryIdempotentWithTurnPath(t *testing.T) {
	ctx := context.Background()
	llm := ai.NewMockLLM("entry text")
	svc := NewService(store.New(nil, store.Config{}), llm, testConfig(), Config{})

	now := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	count, err := svc.AppendTurn(ctx, "conv-1", Turn{UserText: "hi", AssistantText: "hello", Timestamp: now})
	require.NoError(t, err)
	svc.RunTriggers(ctx, "conv-1", count, now)
	require.Len(t, svc.DiaryEntries(ctx, "conv-1"), 1)

	// The sweeper firing for the same local date is a no-op.
	require.NoError(t, svc.RunDiary(ctx, "conv-1", now))
	assert.Len(t, svc.DiaryEntries(ctx, "conv-1"), 1)
}
