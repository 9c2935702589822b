// Package contextual builds the outbound model prompt from the memory tiers
// and cleans the model's reply before delivery.
package contextual

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/plugin/ai/memory"
)

// specificityDirective is appended after every static block so it carries
// maximum recency weight for the generation call.
const specificityDirective = "Always respond to what this specific person said, grounded in their own words and history. Never answer with generic advice or filler."

// defaultBasePrompt is used when the configuration provider supplies none.
const defaultBasePrompt = "You are a warm, attentive conversational companion. You remember what the user has shared and build on it."

// Assembler composes the outbound prompt in a fixed order from the memory
// tiers, the configuration provider and the reference-document provider.
type Assembler struct {
	config ai.ConfigProvider
	docs   ai.ReferenceDocProvider
	mem    *memory.Service
}

// NewAssembler creates an assembler. docs may be nil.
func NewAssembler(config ai.ConfigProvider, docs ai.ReferenceDocProvider, mem *memory.Service) *Assembler {
	if docs == nil {
		docs = ai.NoReferenceDoc{}
	}
	return &Assembler{config: config, docs: docs, mem: mem}
}

// Build assembles the messages and generation params for one turn.
// Configuration is read on every call; the provider owns its caching.
func (a *Assembler) Build(ctx context.Context, conversationID, userText string) ([]ai.Message, ai.GenerationParams) {
	cfg := a.config.Config(ctx)

	base := cfg.BasePrompt
	if base == "" {
		base = defaultBasePrompt
	}

	var system strings.Builder
	system.WriteString(base)

	if block := a.summaryBlock(ctx, conversationID); block != "" {
		system.WriteString("\n\nWhat you remember about this person:\n")
		system.WriteString(block)
	}

	if doc := a.docs.ReferenceDoc(ctx); doc != "" {
		system.WriteString("\n\nReference material:\n")
		system.WriteString(doc)
	}

	system.WriteString("\n\n")
	system.WriteString(specificityDirective)

	messages := []ai.Message{ai.SystemPrompt(system.String())}
	for _, turn := range a.mem.RecentTurns(ctx, conversationID) {
		if turn.UserText != "" {
			messages = append(messages, ai.UserMessage(turn.UserText))
		}
		if turn.AssistantText != "" {
			messages = append(messages, ai.AssistantMessage(turn.AssistantText))
		}
	}
	messages = append(messages, ai.UserMessage(userText))

	return messages, cfg.Params
}

// summaryBlock renders the category summaries as
// "category: [bulleted dated summaries]", empty when none exist.
func (a *Assembler) summaryBlock(ctx context.Context, conversationID string) string {
	summaries := a.mem.CategorySummaries(ctx, conversationID)
	if len(summaries) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, category := range memory.Categories {
		entries := summaries[category]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s:\n", category)
		for _, entry := range entries {
			fmt.Fprintf(&sb, "  - [%s] %s\n", entry.Timestamp.Format("2006-01-02"), entry.Text)
		}
	}
	return sb.String()
}
