package contextual

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/plugin/ai/memory"
	"github.com/hrygo/empathia/store"
)

type staticDoc string

func (d staticDoc) ReferenceDoc(context.Context) string { return string(d) }

func newBuilderFixture(t *testing.T, docs ai.ReferenceDocProvider) (*Assembler, *memory.Service, *store.Store) {
	t.Helper()
	s := store.New(nil, store.Config{})
	config := ai.StaticConfig{GenerationConfig: ai.GenerationConfig{
		BasePrompt: "You are a companion named Empathia.",
		Params:     ai.GenerationParams{Model: "test-model", MaxOutputTokens: 512, Temperature: 0.6},
	}}
	mem := memory.NewService(s, ai.NewMockLLM("unused"), config, memory.Config{})
	return NewAssembler(config, docs, mem), mem, s
}

func TestBuildOrdering(t *testing.T) {
	ctx := context.Background()
	a, mem, s := newBuilderFixture(t, staticDoc("Grounding techniques handbook."))

	_, err := mem.AppendTurn(ctx, "conv-1", memory.Turn{UserText: "first question", AssistantText: "first answer"})
	require.NoError(t, err)
	require.NoError(t, s.SetJSON(ctx, "conv-1", store.NamespaceCategorySummaries, map[string][]memory.CategorySummary{
		"Work": {{Category: "Work", Text: "Worried about the review.", Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}},
	}))

	messages, params := a.Build(ctx, "conv-1", "second question")

	require.Len(t, messages, 4)
	assert.Equal(t, ai.RoleSystem, messages[0].Role)
	assert.Equal(t, ai.RoleUser, messages[1].Role)
	assert.Equal(t, "first question", messages[1].Content)
	assert.Equal(t, ai.RoleAssistant, messages[2].Role)
	assert.Equal(t, "first answer", messages[2].Content)
	assert.Equal(t, ai.RoleUser, messages[3].Role)
	assert.Equal(t, "second question", messages[3].Content)

	system := messages[0].Content
	base := "You are a companion named Empathia."
	summary := "Worried about the review."
	doc := "Grounding techniques handbook."
	assert.Less(t, indexOf(t, system, base), indexOf(t, system, summary))
	assert.Less(t, indexOf(t, system, summary), indexOf(t, system, doc))
	assert.Less(t, indexOf(t, system, doc), indexOf(t, system, specificityDirective))

	assert.Equal(t, "test-model", params.Model)
	assert.Equal(t, 512, params.MaxOutputTokens)
}

func TestBuildOmitsEmptyBlocks(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newBuilderFixture(t, nil)

	messages, _ := a.Build(ctx, "conv-empty", "hello")
	require.Len(t, messages, 2)

	system := messages[0].Content
	assert.NotContains(t, system, "What you remember")
	assert.NotContains(t, system, "Reference material")
	assert.True(t, len(system) > 0)
	// The directive still closes the system block.
	assert.Contains(t, system, specificityDirective)
}

func TestBuildDefaultBasePrompt(t *testing.T) {
	ctx := context.Background()
	s := store.New(nil, store.Config{})
	config := ai.StaticConfig{}
	mem := memory.NewService(s, ai.NewMockLLM("unused"), config, memory.Config{})
	a := NewAssembler(config, nil, mem)

	messages, _ := a.Build(ctx, "conv-1", "hello")
	assert.Contains(t, messages[0].Content, defaultBasePrompt)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "missing %q", needle)
	return idx
}
