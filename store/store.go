// Package store implements the durable memory store: a two-tier key/value
// surface keyed by (conversation id, namespace). The in-process cache backs
// every read; the durable backend is optional and best-effort.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	storecache "github.com/hrygo/empathia/store/cache"
)

// Namespace identifies one independent key per conversation.
// No transactional guarantee exists across namespaces.
type Namespace string

const (
	NamespaceHistory           Namespace = "history"
	NamespaceTurnCounter       Namespace = "turn-counter"
	NamespaceCategorySummaries Namespace = "category-summaries"
	NamespaceSummaryMarker     Namespace = "summary-marker"
	NamespaceClinicalNotes     Namespace = "clinical-notes"
	NamespaceDiary             Namespace = "diary"
	NamespaceDiaryMarker       Namespace = "diary-marker"
	NamespaceOverallSummary    Namespace = "overall-summary"
)

// Store provides two-tier access to all conversation memory tiers.
// The in-process tier is updated unconditionally on writes and remains the
// source of truth for the process lifetime when the durable backend fails.
type Store struct {
	cache  *storecache.Cache
	driver Driver // nil when no durable backend is configured

	timeout      time.Duration
	warnNoDriver sync.Once

	durableWriteFailures atomic.Int64
	durableReadFailures  atomic.Int64
}

// Config tunes the store.
type Config struct {
	// CacheCapacity bounds the in-process tier. 0 selects the default.
	CacheCapacity int
	// DriverTimeout bounds each durable backend call (default 3s).
	DriverTimeout time.Duration
}

// New creates a store. driver may be nil; all operations then degrade to
// pure in-process caching.
func New(driver Driver, cfg Config) *Store {
	if cfg.DriverTimeout <= 0 {
		cfg.DriverTimeout = 3 * time.Second
	}
	return &Store{
		cache:   storecache.New(cfg.CacheCapacity),
		driver:  driver,
		timeout: cfg.DriverTimeout,
	}
}

func cacheKey(conversationID string, ns Namespace) string {
	return conversationID + ":" + string(ns)
}

// Get reads the value for (conversationID, ns). The in-process tier backs the
// read first; on miss the durable backend is queried and, if found, used to
// populate the in-process tier. Returns false when the value is absent.
func (s *Store) Get(ctx context.Context, conversationID string, ns Namespace) ([]byte, bool) {
	if conversationID == "" {
		return nil, false
	}

	key := cacheKey(conversationID, ns)
	if value, ok := s.cache.Get(key); ok {
		return value, true
	}

	if s.driver == nil {
		s.warnOnce()
		return nil, false
	}

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, err := s.driver.Get(dctx, conversationID, ns)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.durableReadFailures.Add(1)
			slog.Warn("durable read failed, serving cache-only",
				"conversation_id", conversationID, "namespace", ns, "error", err)
		}
		return nil, false
	}

	s.cache.Set(key, value)
	return value, true
}

// Set writes the value for (conversationID, ns). The in-process tier is
// updated unconditionally; the durable write is attempted and its failure is
// logged but never surfaced. Returns an error only for invalid input.
func (s *Store) Set(ctx context.Context, conversationID string, ns Namespace, value []byte) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}

	s.cache.Set(cacheKey(conversationID, ns), value)

	if s.driver == nil {
		s.warnOnce()
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.driver.Set(dctx, conversationID, ns, value); err != nil {
		s.durableWriteFailures.Add(1)
		slog.Warn("durable write failed, in-process tier remains authoritative",
			"conversation_id", conversationID, "namespace", ns, "error", err)
	}
	return nil
}

// GetJSON reads and decodes the value for (conversationID, ns) into dest.
// Returns false when absent; a corrupt stored value is treated as absent
// after logging, so a bad blob cannot wedge a conversation forever.
func (s *Store) GetJSON(ctx context.Context, conversationID string, ns Namespace, dest any) bool {
	raw, ok := s.Get(ctx, conversationID, ns)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("corrupt value in memory store, treating as absent",
			"conversation_id", conversationID, "namespace", ns, "error", err)
		return false
	}
	return true
}

// SetJSON encodes value and writes it for (conversationID, ns).
func (s *Store) SetJSON(ctx context.Context, conversationID string, ns Namespace, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", ns)
	}
	return s.Set(ctx, conversationID, ns, raw)
}

// Forget drops every in-process entry for a conversation. Used by tests to
// simulate a process restart; the durable backend is untouched.
func (s *Store) Forget(conversationID string) {
	s.cache.Invalidate(conversationID + ":*")
}

// HasDurableBackend reports whether a durable backend is configured.
func (s *Store) HasDurableBackend() bool {
	return s.driver != nil
}

// Stats returns operational counters for logging.
func (s *Store) Stats() map[string]any {
	return map[string]any{
		"cache_size":             s.cache.Size(),
		"durable_backend":        s.driver != nil,
		"durable_write_failures": s.durableWriteFailures.Load(),
		"durable_read_failures":  s.durableReadFailures.Load(),
	}
}

// Close releases the durable backend connection, if any.
func (s *Store) Close() error {
	if s.driver != nil {
		return s.driver.Close()
	}
	return nil
}

func (s *Store) warnOnce() {
	s.warnNoDriver.Do(func() {
		slog.Warn("no durable backend configured, memory is process-local only")
	})
}
