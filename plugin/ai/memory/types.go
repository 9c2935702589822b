// Package memory implements the layered conversation memory engine: rolling
// history, categorized summaries, clinical session notes, daily diary entries
// and the on-demand overall rollup. All tiers are persisted through the
// two-tier memory store and owned exclusively by this package.
package memory

import (
	"strings"
	"time"
)

// Turn is one user utterance plus the assistant's reply to it.
// Immutable once appended.
type Turn struct {
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	Timestamp     time.Time `json:"timestamp"`
}

// CategorySummary is a condensed slice of recent conversation filed under a
// taxonomy category.
type CategorySummary struct {
	Category              string    `json:"category"`
	Text                  string    `json:"text"`
	Timestamp             time.Time `json:"timestamp"`
	TurnCountAtGeneration int       `json:"turn_count_at_generation"`
}

// ClinicalNote is a structured session note. SessionNumber is 1-based and
// sequential; no two notes share a TurnCountAtGeneration.
type ClinicalNote struct {
	SessionNumber         int       `json:"session_number"`
	Text                  string    `json:"text"`
	Timestamp             time.Time `json:"timestamp"`
	TurnCountAtGeneration int       `json:"turn_count_at_generation"`
}

// DiaryEntry is a narrative day summary. Date is a conversation-local
// calendar day in YYYY-MM-DD form; at most one entry exists per date.
type DiaryEntry struct {
	Date      string    `json:"date"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	TurnCount int       `json:"turn_count"`
}

// OverallSummary is the cached rollup of all tiers, invalidated only by
// explicit regeneration.
type OverallSummary struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// counterValue is the persisted form of integer markers.
type counterValue struct {
	Count int `json:"count"`
}

// dateValue is the persisted form of the diary marker.
type dateValue struct {
	Date string `json:"date"`
}

// DateLayout is the calendar-day key format for diary entries.
const DateLayout = "2006-01-02"

// CategoryOther is the catch-all taxonomy category.
const CategoryOther = "Other"

// Categories is the closed classification taxonomy. The classifier answer is
// normalized against this set; anything unrecognized becomes CategoryOther.
var Categories = []string{
	"Work",
	"Relationships",
	"Family",
	"Health",
	"Emotions",
	"Goals",
	"Leisure",
	"Daily Life",
	CategoryOther,
}

// NormalizeCategory maps a raw classifier answer onto the taxonomy.
func NormalizeCategory(raw string) string {
	answer := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `."'`))
	for _, category := range Categories {
		if strings.EqualFold(answer, category) {
			return category
		}
	}
	return CategoryOther
}
