package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/store"
)

// diaryContinuityWindow is how many prior entries feed the prompt.
const diaryContinuityWindow = 3

// DiaryGenerator produces one narrative entry per conversation-local calendar
// day. Entries are keyed by date and upserted, so re-running within the same
// day replaces rather than duplicates.
type DiaryGenerator struct {
	store   *store.Store
	llm     ai.LLMService
	config  ai.ConfigProvider
	history *History
	loc     *time.Location
}

// NewDiaryGenerator creates a diary generator. loc nil selects UTC.
func NewDiaryGenerator(s *store.Store, llm ai.LLMService, config ai.ConfigProvider, history *History, loc *time.Location) *DiaryGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &DiaryGenerator{store: s, llm: llm, config: config, history: history, loc: loc}
}

// Entries returns diary entries ordered by date ascending.
func (g *DiaryGenerator) Entries(ctx context.Context, conversationID string) []DiaryEntry {
	var entries []DiaryEntry
	g.store.GetJSON(ctx, conversationID, store.NamespaceDiary, &entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	return entries
}

// Marker returns the date of the most recently generated entry, "" when none.
func (g *DiaryGenerator) Marker(ctx context.Context, conversationID string) string {
	var marker dateValue
	g.store.GetJSON(ctx, conversationID, store.NamespaceDiaryMarker, &marker)
	return marker.Date
}

// LocalDate renders a time as a conversation-local calendar day.
func (g *DiaryGenerator) LocalDate(t time.Time) string {
	return t.In(g.loc).Format(DateLayout)
}

// ShouldRun is the trigger predicate: the local date moved past the marker,
// including the no-marker-yet case.
func (g *DiaryGenerator) ShouldRun(ctx context.Context, conversationID string, now time.Time) bool {
	return g.LocalDate(now) != g.Marker(ctx, conversationID)
}

// Run generates the entry for the current local date. With an existing marker
// only that date's turns feed the prompt; the first-ever entry bootstraps from
// the full buffer. An empty selection skips without error; a generation
// failure leaves the marker unchanged so the next turn retries.
func (g *DiaryGenerator) Run(ctx context.Context, conversationID string, now time.Time) error {
	if conversationID == "" {
		return engerr.InvalidArgument("conversation id is required")
	}

	targetDate := g.LocalDate(now)
	marker := g.Marker(ctx, conversationID)

	var selected []Turn
	if marker == "" {
		selected = g.history.Current(ctx, conversationID)
	} else {
		selected = g.history.TurnsOn(ctx, conversationID, targetDate, g.loc)
	}
	if len(selected) == 0 {
		return nil
	}
	return g.generate(ctx, conversationID, targetDate, selected)
}

// RunFor regenerates the entry for a specific local date from that date's
// buffered turns. The midnight sweeper uses it to close out the previous day:
// the turn-triggered path writes a day's entry on the day's first turn, so
// turns that arrive later are not reflected until something regenerates the
// entry. Skips when the date has no buffered turns or the stored entry
// already covers all of them.
func (g *DiaryGenerator) RunFor(ctx context.Context, conversationID, date string) error {
	if conversationID == "" {
		return engerr.InvalidArgument("conversation id is required")
	}

	selected := g.history.TurnsOn(ctx, conversationID, date, g.loc)
	if len(selected) == 0 {
		return nil
	}
	for _, entry := range g.Entries(ctx, conversationID) {
		if entry.Date == date && entry.TurnCount >= len(selected) {
			return nil
		}
	}
	return g.generate(ctx, conversationID, date, selected)
}

func (g *DiaryGenerator) generate(ctx context.Context, conversationID, date string, selected []Turn) error {
	prompt := g.buildPrompt(ctx, conversationID, selected)
	params := g.config.Config(ctx).Params
	text, err := g.llm.Chat(ctx, prompt, params)
	if err != nil {
		return engerr.GenerationFailed("diary generation failed", err)
	}

	entries := g.Entries(ctx, conversationID)
	entries = upsertEntry(entries, DiaryEntry{
		Date:      date,
		Text:      text,
		Timestamp: time.Now(),
		TurnCount: len(selected),
	})
	if err := g.store.SetJSON(ctx, conversationID, store.NamespaceDiary, entries); err != nil {
		return err
	}
	return g.advanceMarker(ctx, conversationID, date)
}

func (g *DiaryGenerator) buildPrompt(ctx context.Context, conversationID string, selected []Turn) []ai.Message {
	var sb strings.Builder

	entries := g.Entries(ctx, conversationID)
	if len(entries) > diaryContinuityWindow {
		entries = entries[len(entries)-diaryContinuityWindow:]
	}
	if len(entries) > 0 {
		sb.WriteString("Previous diary entries:\n")
		for _, entry := range entries {
			fmt.Fprintf(&sb, "%s: %s\n", entry.Date, entry.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Today's conversation:\n")
	sb.WriteString(formatTranscript(selected))

	return []ai.Message{
		ai.SystemPrompt(diaryPrompt),
		ai.UserMessage(sb.String()),
	}
}

// advanceMarker moves the diary marker forward, never backward.
func (g *DiaryGenerator) advanceMarker(ctx context.Context, conversationID string, date string) error {
	if date <= g.Marker(ctx, conversationID) {
		return nil
	}
	return g.store.SetJSON(ctx, conversationID, store.NamespaceDiaryMarker, dateValue{Date: date})
}

// upsertEntry replaces the entry for the same date or appends a new one.
func upsertEntry(entries []DiaryEntry, entry DiaryEntry) []DiaryEntry {
	for i := range entries {
		if entries[i].Date == entry.Date {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}
