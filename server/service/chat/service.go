// Package chat exposes the engine surface consumed by the webhook and admin
// layers: the synchronous turn path plus read access to every memory tier.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/empathia/channel"
	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/internal/observability"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/plugin/ai/contextual"
	"github.com/hrygo/empathia/plugin/ai/memory"
)

// FallbackText substitutes an empty sanitized reply; gateways require
// non-empty text.
const FallbackText = "I'm here with you. Tell me more."

// ApologyText is what the webhook layer should deliver when OnTurn returns a
// generation failure.
const ApologyText = "I'm sorry, I couldn't gather my thoughts just now. Please say that again in a moment."

// DefaultMaxLength bounds outbound messages when the profile does not.
const DefaultMaxLength = 4096

// Service orchestrates one turn: assemble context, generate, sanitize,
// deliver, append, then dispatch the background generators.
type Service struct {
	mem       *memory.Service
	llm       ai.LLMService
	assembler *contextual.Assembler
	gateway   channel.Gateway
	maxLength int

	now func() time.Time

	// background tracks fire-and-forget generator runs so tests and
	// shutdown can wait for them. The request path never does.
	background sync.WaitGroup

	// seen tracks conversations handled this process lifetime, for the
	// diary sweeper.
	seenMu sync.Mutex
	seen   map[string]struct{}
}

// NewService wires the chat surface. gateway nil selects channel.Noop;
// maxLength <= 0 selects DefaultMaxLength.
func NewService(mem *memory.Service, llm ai.LLMService, assembler *contextual.Assembler, gateway channel.Gateway, maxLength int) *Service {
	if gateway == nil {
		gateway = channel.Noop{}
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Service{
		mem:       mem,
		llm:       llm,
		assembler: assembler,
		gateway:   gateway,
		maxLength: maxLength,
		now:       time.Now,
		seen:      make(map[string]struct{}),
	}
}

// Conversations lists the conversations handled this process lifetime.
func (s *Service) Conversations() []string {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) markSeen(conversationID string) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	s.seen[conversationID] = struct{}{}
}

// OnTurn handles one inbound user turn and returns the sanitized reply.
// A generation failure is returned as a typed error so the caller can deliver
// an apology; nothing is appended to history in that case. Background
// generators are dispatched after the reply and never affect the return.
func (s *Service) OnTurn(ctx context.Context, conversationID, userText string) (string, error) {
	if conversationID == "" || strings.TrimSpace(userText) == "" {
		return "", engerr.InvalidArgument("conversation id and user text are required")
	}

	rc := observability.NewRunContext(slog.Default(), "turn", conversationID)
	s.markSeen(conversationID)

	messages, params := s.assembler.Build(ctx, conversationID, userText)
	raw, err := s.llm.Chat(ctx, messages, params)
	if err != nil {
		rc.Error("reply generation failed", err,
			slog.String(observability.LogFieldErrorCode, string(engerr.GetCodeFromError(err, engerr.ErrCodeGenerationFailed))))
		return "", err
	}

	reply := s.bound(contextual.Sanitize(raw))

	if err := s.gateway.Deliver(ctx, conversationID, reply); err != nil {
		// Delivery is the transport's concern; the turn still counts.
		rc.Warn("gateway delivery failed", slog.String("gateway", s.gateway.Name()),
			slog.String("error", err.Error()))
	}

	count, err := s.mem.AppendTurn(ctx, conversationID, memory.Turn{
		UserText:      userText,
		AssistantText: reply,
		Timestamp:     s.now(),
	})
	if err != nil {
		// Invalid input only; persistence failures never reach here.
		rc.Warn("turn append skipped", slog.String("error", err.Error()))
		return reply, nil
	}

	rc.Info("turn completed",
		slog.Int(observability.LogFieldTurnCount, count),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))

	s.dispatchBackground(conversationID, count)
	return reply, nil
}

// dispatchBackground runs the triggered generators without awaiting them.
// The request context is deliberately not inherited: a finished request must
// not cancel a half-done pass, and generator calls carry their own timeouts.
func (s *Service) dispatchBackground(conversationID string, count int) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background generator panicked", "conversation_id", conversationID, "panic", r)
			}
		}()
		s.mem.RunTriggers(context.Background(), conversationID, count, s.now())
	}()
}

// WaitBackground blocks until all dispatched generator runs finish.
// Used by tests and graceful shutdown.
func (s *Service) WaitBackground() {
	s.background.Wait()
}

// bound enforces the gateway contract: truncate with ellipsis past the
// length bound, substitute the fallback when empty.
func (s *Service) bound(text string) string {
	if text == "" {
		return FallbackText
	}
	runes := []rune(text)
	if len(runes) <= s.maxLength {
		return text
	}
	return string(runes[:s.maxLength-1]) + "…"
}

// Read surface consumed by the excluded webhook/admin layers.

// GetCategorySummaries returns the category → summaries mapping.
func (s *Service) GetCategorySummaries(ctx context.Context, conversationID string) map[string][]memory.CategorySummary {
	return s.mem.CategorySummaries(ctx, conversationID)
}

// GetClinicalHistory returns the session note sequence.
func (s *Service) GetClinicalHistory(ctx context.Context, conversationID string) []memory.ClinicalNote {
	return s.mem.ClinicalNotes(ctx, conversationID)
}

// GetDiary returns diary entries ordered by date.
func (s *Service) GetDiary(ctx context.Context, conversationID string) []memory.DiaryEntry {
	return s.mem.DiaryEntries(ctx, conversationID)
}

// GetOrGenerateOverallSummary returns the cached rollup, generating on demand.
func (s *Service) GetOrGenerateOverallSummary(ctx context.Context, conversationID string) (*memory.OverallSummary, error) {
	return s.mem.GetOrGenerateOverall(ctx, conversationID)
}

// RegenerateOverallSummary bypasses the rollup cache and overwrites it.
func (s *Service) RegenerateOverallSummary(ctx context.Context, conversationID string) (*memory.OverallSummary, error) {
	return s.mem.RegenerateOverall(ctx, conversationID)
}
