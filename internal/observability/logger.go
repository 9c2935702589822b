// Package observability provides structured logging scopes for turn handling
// and background generator runs.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRunID is the field name for the run ID.
	LogFieldRunID = "run_id"
	// LogFieldConversationID is the field name for the conversation ID.
	LogFieldConversationID = "conversation_id"
	// LogFieldTask is the field name for the task kind (turn, summary, note, diary, overall).
	LogFieldTask = "task"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldTurnCount is the field name for the conversation turn counter.
	LogFieldTurnCount = "turn_count"
	// LogFieldErrorCode is the field name for a typed error code.
	LogFieldErrorCode = "error_code"
)

// RunContext represents the logging scope of a single turn or background run.
type RunContext struct {
	RunID          string
	ConversationID string
	Task           string
	StartTime      time.Time
	Logger         *slog.Logger
}

// NewRunContext creates a run context with a generated run ID.
func NewRunContext(logger *slog.Logger, task, conversationID string) *RunContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunContext{
		RunID:          uuid.New().String(),
		ConversationID: conversationID,
		Task:           task,
		StartTime:      time.Now(),
		Logger:         logger,
	}
}

// Info logs an info message.
func (r *RunContext) Info(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, r.withBase(attrs)...)
}

// Debug logs a debug message.
func (r *RunContext) Debug(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, r.withBase(attrs)...)
}

// Warn logs a warning message.
func (r *RunContext) Warn(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, r.withBase(attrs)...)
}

// Error logs an error message with the error.
func (r *RunContext) Error(msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	r.Logger.LogAttrs(context.Background(), slog.LevelError, msg, r.withBase(attrs)...)
}

// DurationMs returns the elapsed time in milliseconds.
func (r *RunContext) DurationMs() int64 {
	return time.Since(r.StartTime).Milliseconds()
}

func (r *RunContext) withBase(attrs []slog.Attr) []slog.Attr {
	base := []slog.Attr{
		slog.String(LogFieldRunID, r.RunID),
		slog.String(LogFieldConversationID, r.ConversationID),
		slog.String(LogFieldTask, r.Task),
	}
	return append(base, attrs...)
}

type ctxKey struct{}

// WithRunContext adds the run context to the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext extracts the run context from the context.
func FromContext(ctx context.Context) (*RunContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(*RunContext)
	return rc, ok
}
