// Package ai provides the text-generation service interface consumed by the
// memory engine, plus the external collaborator contracts around it.
package ai

import (
	"context"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// GenerationParams are the per-call knobs supplied by the configuration
// provider. The engine treats them as opaque inputs.
type GenerationParams struct {
	Model           string
	MaxOutputTokens int
	Temperature     float32
}

// LLMService is the text-generation service interface.
type LLMService interface {
	// Chat performs a synchronous chat completion.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}

// GenerationConfig is what the configuration provider supplies on every
// prompt assembly.
type GenerationConfig struct {
	BasePrompt string
	Params     GenerationParams
}

// ConfigProvider supplies the mutable generation configuration.
// It is read on every assembly; implementations decide their own caching.
type ConfigProvider interface {
	Config(ctx context.Context) GenerationConfig
}

// ReferenceDocProvider supplies an optional static text block injected into
// the prompt. An empty string means no block.
type ReferenceDocProvider interface {
	ReferenceDoc(ctx context.Context) string
}

// Helper constructors for prompt building.

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
