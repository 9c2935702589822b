package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/store"
)

// clinicalContextTruncate bounds each prior summary fed into the note prompt.
const clinicalContextTruncate = 400

// ClinicalNoteGenerator produces a structured session note every M turns.
// Idempotency is by exact turn count: the guard scans the existing note list,
// and is re-checked immediately before persisting so overlapping triggers for
// the same count cannot both store a note.
type ClinicalNoteGenerator struct {
	store      *store.Store
	llm        ai.LLMService
	config     ai.ConfigProvider
	history    *History
	summarizer *CategorySummarizer

	interval int // M
}

// NewClinicalNoteGenerator creates a note generator. interval <= 0 selects
// the default 10.
func NewClinicalNoteGenerator(s *store.Store, llm ai.LLMService, config ai.ConfigProvider, history *History, summarizer *CategorySummarizer, interval int) *ClinicalNoteGenerator {
	if interval <= 0 {
		interval = 10
	}
	return &ClinicalNoteGenerator{
		store:      s,
		llm:        llm,
		config:     config,
		history:    history,
		summarizer: summarizer,
		interval:   interval,
	}
}

// Notes returns the append-only note sequence, possibly empty.
func (g *ClinicalNoteGenerator) Notes(ctx context.Context, conversationID string) []ClinicalNote {
	var notes []ClinicalNote
	g.store.GetJSON(ctx, conversationID, store.NamespaceClinicalNotes, &notes)
	return notes
}

// ShouldRun is the trigger predicate: count is a positive multiple of the
// interval and no note exists for this exact count.
func (g *ClinicalNoteGenerator) ShouldRun(ctx context.Context, conversationID string, count int) bool {
	if count <= 0 || count%g.interval != 0 {
		return false
	}
	return !hasNoteFor(g.Notes(ctx, conversationID), count)
}

// Run generates and persists the note for the given turn count. On failure
// nothing is stored, so the trigger re-fires at this count until it succeeds.
func (g *ClinicalNoteGenerator) Run(ctx context.Context, conversationID string, count int) error {
	if conversationID == "" {
		return engerr.InvalidArgument("conversation id is required")
	}

	turns := g.history.Current(ctx, conversationID)
	window := turns
	if len(window) > g.interval {
		window = window[len(window)-g.interval:]
	}
	if len(window) == 0 {
		return nil
	}

	prompt := g.buildPrompt(ctx, conversationID, window)
	params := g.config.Config(ctx).Params
	text, err := g.llm.Chat(ctx, prompt, params)
	if err != nil {
		return engerr.GenerationFailed("clinical note generation failed", err)
	}

	// Re-check the guard right before persisting: a concurrent trigger for
	// the same count may have finished while we were generating. Last-write
	// -wins persistence would otherwise duplicate the note.
	notes := g.Notes(ctx, conversationID)
	if hasNoteFor(notes, count) {
		return nil
	}

	notes = append(notes, ClinicalNote{
		SessionNumber:         len(notes) + 1,
		Text:                  text,
		Timestamp:             time.Now(),
		TurnCountAtGeneration: count,
	})
	return g.store.SetJSON(ctx, conversationID, store.NamespaceClinicalNotes, notes)
}

func (g *ClinicalNoteGenerator) buildPrompt(ctx context.Context, conversationID string, window []Turn) []ai.Message {
	var sb strings.Builder

	summaries := g.summarizer.Summaries(ctx, conversationID)
	if len(summaries) > 0 {
		sb.WriteString("Longitudinal context from earlier sessions:\n")
		for _, category := range Categories {
			for _, summary := range summaries[category] {
				fmt.Fprintf(&sb, "[%s] %s\n", category, truncate(summary.Text, clinicalContextTruncate))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Session transcript:\n")
	sb.WriteString(formatTranscript(window))

	return []ai.Message{
		ai.SystemPrompt(clinicalPrompt),
		ai.UserMessage(sb.String()),
	}
}

// hasNoteFor is the idempotency guard: notes are few, so a scan is cheap.
func hasNoteFor(notes []ClinicalNote, count int) bool {
	for _, note := range notes {
		if note.TurnCountAtGeneration == count {
			return true
		}
	}
	return false
}
