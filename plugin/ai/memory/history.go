package memory

import (
	"context"
	"time"

	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/store"
)

// History maintains the bounded recent-turn buffer per conversation, plus the
// monotonically increasing turn counter. The buffer evicts; the counter does
// not.
type History struct {
	store    *store.Store
	capacity int
}

// NewHistory creates a history manager. capacity <= 0 selects the default 50.
func NewHistory(s *store.Store, capacity int) *History {
	if capacity <= 0 {
		capacity = 50
	}
	return &History{store: s, capacity: capacity}
}

// Capacity returns the buffer bound H.
func (h *History) Capacity() int {
	return h.capacity
}

// Load hydrates the in-process buffer from the durable store. The store's
// read-through makes this a no-op when already hydrated this process
// lifetime.
func (h *History) Load(ctx context.Context, conversationID string) []Turn {
	var turns []Turn
	h.store.GetJSON(ctx, conversationID, store.NamespaceHistory, &turns)
	return turns
}

// Current returns the buffer (possibly empty) without side effects beyond
// hydration.
func (h *History) Current(ctx context.Context, conversationID string) []Turn {
	return h.Load(ctx, conversationID)
}

// Append pushes a turn, evicts the oldest beyond capacity, bumps the turn
// counter and persists both best-effort. Returns the new counter value.
func (h *History) Append(ctx context.Context, conversationID string, turn Turn) (int, error) {
	if conversationID == "" {
		return 0, engerr.InvalidArgument("conversation id is required")
	}
	if turn.UserText == "" && turn.AssistantText == "" {
		return 0, engerr.InvalidArgument("empty turn")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	turns := h.Load(ctx, conversationID)
	turns = append(turns, turn)
	if len(turns) > h.capacity {
		turns = turns[len(turns)-h.capacity:]
	}

	count := h.TurnCount(ctx, conversationID) + 1

	// Persistence failures are swallowed inside the store; the in-process
	// tier stays correct and the next append retries the durable write.
	if err := h.store.SetJSON(ctx, conversationID, store.NamespaceHistory, turns); err != nil {
		return 0, err
	}
	if err := h.store.SetJSON(ctx, conversationID, store.NamespaceTurnCounter, counterValue{Count: count}); err != nil {
		return 0, err
	}
	return count, nil
}

// TurnCount returns the monotonically increasing per-conversation turn
// counter, 0 when the conversation has no turns.
func (h *History) TurnCount(ctx context.Context, conversationID string) int {
	var counter counterValue
	h.store.GetJSON(ctx, conversationID, store.NamespaceTurnCounter, &counter)
	return counter.Count
}

// TurnsOn returns the buffered turns whose timestamp falls on the given
// conversation-local calendar day.
func (h *History) TurnsOn(ctx context.Context, conversationID string, day string, loc *time.Location) []Turn {
	var selected []Turn
	for _, turn := range h.Load(ctx, conversationID) {
		if turn.Timestamp.In(loc).Format(DateLayout) == day {
			selected = append(selected, turn)
		}
	}
	return selected
}
