package memory

import (
	"fmt"
	"strings"
)

// Prompt templates for the background generators. Wording is deliberately
// plain; the shape of the prompts matters more than the prose.

const classifyPromptFormat = `Classify the dominant topic of the following user messages.
Answer with exactly one category from this list and nothing else:
%s

Messages:
%s`

const summaryPrompt = `Summarize the following conversation excerpt in 2-3 sentences.
Cover the user's emotional state, the topics discussed, and any progress made or difficulty encountered.`

const clinicalPrompt = `You are writing a structured session note for a supportive conversation log.
Write the note with exactly these sections, each a short paragraph:

Autoreport:
Interventions:
Observations:
Strengths:
Recommendations:

Base the note on the longitudinal context and the verbatim session transcript below.`

const diaryPrompt = `Write a diary entry narrating this day of conversation from the user's perspective.
Keep it to one or two paragraphs, warm and concrete. Use the prior entries only for continuity.`

const overallPrompt = `Fold the following diary entries, session notes and topic summaries into a single
narrative summary of this person's journey so far. Two or three paragraphs.`

func buildClassifyPrompt(userTexts []string) string {
	var sb strings.Builder
	for _, text := range userTexts {
		sb.WriteString("- ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return fmt.Sprintf(classifyPromptFormat, strings.Join(Categories, ", "), sb.String())
}

// formatTranscript renders turns as alternating speaker lines.
func formatTranscript(turns []Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		if turn.UserText != "" {
			fmt.Fprintf(&sb, "User: %s\n", turn.UserText)
		}
		if turn.AssistantText != "" {
			fmt.Fprintf(&sb, "Assistant: %s\n", turn.AssistantText)
		}
	}
	return sb.String()
}

// truncate bounds a text block for prompt inclusion.
func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
