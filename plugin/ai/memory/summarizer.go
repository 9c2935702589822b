package memory

import (
	"context"
	"log/slog"
	"time"

	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/store"
)

const (
	// classifyWindow is how many recent user utterances feed classification.
	classifyWindow = 5
	// minTurnsForSummary is the minimum buffered turns before a pass runs.
	minTurnsForSummary = 5
)

// CategorySummarizer condenses recent history into categorized summaries
// every N turns. Cadence state lives in the summary marker; re-running a
// satisfied trigger is a no-op, re-running an interrupted one at worst
// produces a harmless extra summary.
type CategorySummarizer struct {
	store   *store.Store
	llm     ai.LLMService
	config  ai.ConfigProvider
	history *History

	interval    int // N: marker distance that arms the trigger
	categoryCap int // K: per-category FIFO bound
}

// NewCategorySummarizer creates a summarizer. interval/categoryCap <= 0
// select the defaults 10 and 5.
func NewCategorySummarizer(s *store.Store, llm ai.LLMService, config ai.ConfigProvider, history *History, interval, categoryCap int) *CategorySummarizer {
	if interval <= 0 {
		interval = 10
	}
	if categoryCap <= 0 {
		categoryCap = 5
	}
	return &CategorySummarizer{
		store:       s,
		llm:         llm,
		config:      config,
		history:     history,
		interval:    interval,
		categoryCap: categoryCap,
	}
}

// Marker returns the turn count of the most recent successful pass.
func (c *CategorySummarizer) Marker(ctx context.Context, conversationID string) int {
	var marker counterValue
	c.store.GetJSON(ctx, conversationID, store.NamespaceSummaryMarker, &marker)
	return marker.Count
}

// ShouldRun is the trigger predicate: at least N turns past the marker, and
// enough buffered history to summarize.
func (c *CategorySummarizer) ShouldRun(ctx context.Context, conversationID string, count int) bool {
	if count < c.Marker(ctx, conversationID)+c.interval {
		return false
	}
	return len(c.history.Current(ctx, conversationID)) >= minTurnsForSummary
}

// Run executes one summarization pass at the given turn count: classify the
// recent window, summarize it, append under the category, then advance the
// marker. A generation failure aborts the pass with the marker unchanged so
// the next qualifying turn retries.
func (c *CategorySummarizer) Run(ctx context.Context, conversationID string, count int) error {
	if conversationID == "" {
		return engerr.InvalidArgument("conversation id is required")
	}

	turns := c.history.Current(ctx, conversationID)
	if len(turns) < minTurnsForSummary {
		return nil
	}

	// The window under consideration: the turns accumulated since the
	// marker, bounded by what the buffer still holds.
	window := turns
	if len(window) > c.interval {
		window = window[len(window)-c.interval:]
	}

	category := c.classify(ctx, turns)

	params := c.config.Config(ctx).Params
	text, err := c.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt(summaryPrompt),
		ai.UserMessage(formatTranscript(window)),
	}, params)
	if err != nil {
		return engerr.GenerationFailed("category summary generation failed", err)
	}

	summaries := c.Summaries(ctx, conversationID)
	if summaries == nil {
		summaries = make(map[string][]CategorySummary)
	}
	summaries[category] = append(summaries[category], CategorySummary{
		Category:              category,
		Text:                  text,
		Timestamp:             time.Now(),
		TurnCountAtGeneration: count,
	})
	if len(summaries[category]) > c.categoryCap {
		summaries[category] = summaries[category][len(summaries[category])-c.categoryCap:]
	}

	// Marker advances only after the summary content is persisted; a crash
	// in between costs one duplicate pass later, never a loss.
	if err := c.store.SetJSON(ctx, conversationID, store.NamespaceCategorySummaries, summaries); err != nil {
		return err
	}
	return c.advanceMarker(ctx, conversationID, count)
}

// Summaries returns the category → summaries mapping, possibly empty.
func (c *CategorySummarizer) Summaries(ctx context.Context, conversationID string) map[string][]CategorySummary {
	summaries := make(map[string][]CategorySummary)
	c.store.GetJSON(ctx, conversationID, store.NamespaceCategorySummaries, &summaries)
	return summaries
}

// classify sends the last few user utterances to the generation service and
// normalizes its single-token answer. Any failure falls back to Other.
func (c *CategorySummarizer) classify(ctx context.Context, turns []Turn) string {
	var userTexts []string
	for _, turn := range turns {
		if turn.UserText != "" {
			userTexts = append(userTexts, turn.UserText)
		}
	}
	if len(userTexts) > classifyWindow {
		userTexts = userTexts[len(userTexts)-classifyWindow:]
	}
	if len(userTexts) == 0 {
		return CategoryOther
	}

	params := c.config.Config(ctx).Params
	answer, err := c.llm.Chat(ctx, []ai.Message{
		ai.UserMessage(buildClassifyPrompt(userTexts)),
	}, params)
	if err != nil {
		slog.Debug("classification failed, defaulting to Other", "error", err)
		return CategoryOther
	}
	return NormalizeCategory(answer)
}

// advanceMarker moves the summary marker forward, never backward.
func (c *CategorySummarizer) advanceMarker(ctx context.Context, conversationID string, count int) error {
	if count <= c.Marker(ctx, conversationID) {
		return nil
	}
	return c.store.SetJSON(ctx, conversationID, store.NamespaceSummaryMarker, counterValue{Count: count})
}
