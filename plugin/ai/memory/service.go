package memory

import (
	"context"
	"log/slog"
	"time"

	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/internal/observability"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/store"
)

// Config tunes the engine cadence. Zero values select the documented
// defaults (H=50, N=10, K=5, M=10, UTC).
type Config struct {
	HistoryCapacity int
	SummaryInterval int
	CategoryCap     int
	NoteInterval    int
	Location        *time.Location
}

// Service is the conversation aggregate: the sole owner of every memory tier.
// All mutation goes through it; the store underneath is the only resource
// shared across process instances.
type Service struct {
	store      *store.Store
	history    *History
	summarizer *CategorySummarizer
	clinical   *ClinicalNoteGenerator
	diary      *DiaryGenerator
	overall    *OverallAggregator
	loc        *time.Location
}

// NewService wires the memory engine over a store and generation service.
func NewService(s *store.Store, llm ai.LLMService, config ai.ConfigProvider, cfg Config) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	history := NewHistory(s, cfg.HistoryCapacity)
	summarizer := NewCategorySummarizer(s, llm, config, history, cfg.SummaryInterval, cfg.CategoryCap)
	clinical := NewClinicalNoteGenerator(s, llm, config, history, summarizer, cfg.NoteInterval)
	diary := NewDiaryGenerator(s, llm, config, history, loc)
	overall := NewOverallAggregator(s, llm, config, summarizer, clinical, diary)

	return &Service{
		store:      s,
		history:    history,
		summarizer: summarizer,
		clinical:   clinical,
		diary:      diary,
		overall:    overall,
		loc:        loc,
	}
}

// History returns the rolling history manager.
func (s *Service) History() *History { return s.history }

// AppendTurn records a completed turn and returns the new turn count.
func (s *Service) AppendTurn(ctx context.Context, conversationID string, turn Turn) (int, error) {
	return s.history.Append(ctx, conversationID, turn)
}

// RecentTurns returns the bounded history buffer.
func (s *Service) RecentTurns(ctx context.Context, conversationID string) []Turn {
	return s.history.Current(ctx, conversationID)
}

// TurnCount returns the monotonic turn counter.
func (s *Service) TurnCount(ctx context.Context, conversationID string) int {
	return s.history.TurnCount(ctx, conversationID)
}

// CategorySummaries returns the category → summaries mapping.
func (s *Service) CategorySummaries(ctx context.Context, conversationID string) map[string][]CategorySummary {
	return s.summarizer.Summaries(ctx, conversationID)
}

// ClinicalNotes returns the session note sequence.
func (s *Service) ClinicalNotes(ctx context.Context, conversationID string) []ClinicalNote {
	return s.clinical.Notes(ctx, conversationID)
}

// DiaryEntries returns diary entries ordered by date.
func (s *Service) DiaryEntries(ctx context.Context, conversationID string) []DiaryEntry {
	return s.diary.Entries(ctx, conversationID)
}

// GetOrGenerateOverall returns the cached rollup, generating on demand.
func (s *Service) GetOrGenerateOverall(ctx context.Context, conversationID string) (*OverallSummary, error) {
	return s.overall.GetOrGenerate(ctx, conversationID)
}

// RegenerateOverall bypasses the rollup cache and overwrites it.
func (s *Service) RegenerateOverall(ctx context.Context, conversationID string) (*OverallSummary, error) {
	return s.overall.Regenerate(ctx, conversationID)
}

// RunDiary runs a diary pass if one is due. The upsert keyed by date makes
// double-firing with the sweeper benign.
func (s *Service) RunDiary(ctx context.Context, conversationID string, now time.Time) error {
	if !s.diary.ShouldRun(ctx, conversationID, now) {
		return nil
	}
	return s.diary.Run(ctx, conversationID, now)
}

// SweepDiary is the midnight sweeper entry point: close out the previous
// local day (its entry was written on that day's first turn and misses
// everything after), then run the current-day pass if one is due.
func (s *Service) SweepDiary(ctx context.Context, conversationID string, now time.Time) error {
	previous := s.diary.LocalDate(now.AddDate(0, 0, -1))
	if err := s.diary.RunFor(ctx, conversationID, previous); err != nil {
		return err
	}
	return s.RunDiary(ctx, conversationID, now)
}

// RunTriggers evaluates and runs every turn-triggered generator for the given
// turn count. Intended to be dispatched as fire-and-forget background work
// after the user-facing reply; failures are logged, never propagated.
func (s *Service) RunTriggers(ctx context.Context, conversationID string, count int, now time.Time) {
	if conversationID == "" {
		return
	}

	if s.summarizer.ShouldRun(ctx, conversationID, count) {
		s.runOne(ctx, "summary", conversationID, count, func() error {
			return s.summarizer.Run(ctx, conversationID, count)
		})
	}

	if s.clinical.ShouldRun(ctx, conversationID, count) {
		s.runOne(ctx, "note", conversationID, count, func() error {
			return s.clinical.Run(ctx, conversationID, count)
		})
	}

	if s.diary.ShouldRun(ctx, conversationID, now) {
		s.runOne(ctx, "diary", conversationID, count, func() error {
			return s.diary.Run(ctx, conversationID, now)
		})
	}
}

func (s *Service) runOne(ctx context.Context, task, conversationID string, count int, fn func() error) {
	rc := observability.NewRunContext(slog.Default(), task, conversationID)
	if err := fn(); err != nil {
		rc.Error("background generator pass failed", err,
			slog.Int(observability.LogFieldTurnCount, count),
			slog.String(observability.LogFieldErrorCode, string(engerr.GetCodeFromError(err, engerr.ErrCodeGenerationFailed))))
		return
	}
	rc.Info("background generator pass completed",
		slog.Int(observability.LogFieldTurnCount, count),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
}
