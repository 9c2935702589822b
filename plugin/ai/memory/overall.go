package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/store"
)

// overallNoteTruncate bounds each clinical note fed into the rollup prompt.
const overallNoteTruncate = 600

// OverallAggregator folds all tiers into one cached rollup narrative.
// New turns never invalidate the cache; only explicit regeneration does.
// Concurrent generations for the same conversation are collapsed.
type OverallAggregator struct {
	store      *store.Store
	llm        ai.LLMService
	config     ai.ConfigProvider
	summarizer *CategorySummarizer
	clinical   *ClinicalNoteGenerator
	diary      *DiaryGenerator

	group singleflight.Group
}

// NewOverallAggregator creates an aggregator over the other tiers.
func NewOverallAggregator(s *store.Store, llm ai.LLMService, config ai.ConfigProvider, summarizer *CategorySummarizer, clinical *ClinicalNoteGenerator, diary *DiaryGenerator) *OverallAggregator {
	return &OverallAggregator{
		store:      s,
		llm:        llm,
		config:     config,
		summarizer: summarizer,
		clinical:   clinical,
		diary:      diary,
	}
}

// GetOrGenerate returns the cached rollup, generating it on first demand.
// Returns (nil, nil) when there is nothing to aggregate yet.
func (a *OverallAggregator) GetOrGenerate(ctx context.Context, conversationID string) (*OverallSummary, error) {
	if conversationID == "" {
		return nil, engerr.InvalidArgument("conversation id is required")
	}

	var cached OverallSummary
	if a.store.GetJSON(ctx, conversationID, store.NamespaceOverallSummary, &cached) {
		return &cached, nil
	}
	return a.generate(ctx, conversationID)
}

// Regenerate bypasses the cache check and overwrites the stored rollup.
func (a *OverallAggregator) Regenerate(ctx context.Context, conversationID string) (*OverallSummary, error) {
	if conversationID == "" {
		return nil, engerr.InvalidArgument("conversation id is required")
	}
	return a.generate(ctx, conversationID)
}

func (a *OverallAggregator) generate(_ context.Context, conversationID string) (*OverallSummary, error) {
	result, err, _ := a.group.Do(conversationID, func() (any, error) {
		// The result is shared across coalesced callers, so the generation
		// must not die with whichever caller happened to arrive first. The
		// generation service carries its own timeout.
		ctx := context.Background()

		entries := a.diary.Entries(ctx, conversationID)
		notes := a.clinical.Notes(ctx, conversationID)
		if len(entries) == 0 && len(notes) == 0 {
			return (*OverallSummary)(nil), nil
		}

		params := a.config.Config(ctx).Params
		text, err := a.llm.Chat(ctx, []ai.Message{
			ai.SystemPrompt(overallPrompt),
			ai.UserMessage(a.buildCorpus(ctx, conversationID, entries, notes)),
		}, params)
		if err != nil {
			return nil, engerr.GenerationFailed("overall summary generation failed", err)
		}

		summary := &OverallSummary{Text: text, GeneratedAt: time.Now()}
		if err := a.store.SetJSON(ctx, conversationID, store.NamespaceOverallSummary, summary); err != nil {
			return nil, err
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*OverallSummary), nil
}

func (a *OverallAggregator) buildCorpus(ctx context.Context, conversationID string, entries []DiaryEntry, notes []ClinicalNote) string {
	var sb strings.Builder

	if len(entries) > 0 {
		sb.WriteString("Diary entries:\n")
		for _, entry := range entries {
			fmt.Fprintf(&sb, "%s: %s\n", entry.Date, entry.Text)
		}
		sb.WriteString("\n")
	}

	if len(notes) > 0 {
		sb.WriteString("Session notes:\n")
		for _, note := range notes {
			fmt.Fprintf(&sb, "Session %d: %s\n", note.SessionNumber, truncate(note.Text, overallNoteTruncate))
		}
		sb.WriteString("\n")
	}

	summaries := a.summarizer.Summaries(ctx, conversationID)
	if len(summaries) > 0 {
		sb.WriteString("Topic summaries:\n")
		for _, category := range Categories {
			for _, summary := range summaries[category] {
				fmt.Fprintf(&sb, "[%s] %s\n", category, summary.Text)
			}
		}
	}

	return sb.String()
}
