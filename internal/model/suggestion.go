package model

import (
	"fmt"
	"strings"
)

// SuggestionKey identifies a suggestion in the review lifecycle. Two
// suggestions with the same pattern for the same category are the same
// suggestion, regardless of which analysis pass produced them.
type SuggestionKey struct {
	Pattern    string
	CategoryID int64
}

// String renders the key for logging.
func (k SuggestionKey) String() string {
	return fmt.Sprintf("%s→%d", k.Pattern, k.CategoryID)
}

// RuleSuggestion is a derived, unpersisted recommendation to create a new
// categorisation rule. It is recomputed fresh on every analysis pass;
// accepting one has side effects on corrections and rules, never on the
// suggestion itself.
type RuleSuggestion struct {
	Pattern            string    `json:"pattern"`
	MatchType          MatchType `json:"match_type"`
	CategoryName       string    `json:"category_name"`
	SampleDescriptions []string  `json:"sample_descriptions"`
	CorrectionIDs      []string  `json:"correction_ids"`
	CategoryID         int64     `json:"category_id"`
	CorrectionCount    int       `json:"correction_count"`
	Confidence         float64   `json:"confidence"`
}

// Key returns the lifecycle key for this suggestion. Patterns are compared
// case-insensitively throughout the review flow.
func (s *RuleSuggestion) Key() SuggestionKey {
	return SuggestionKey{
		Pattern:    strings.ToLower(strings.TrimSpace(s.Pattern)),
		CategoryID: s.CategoryID,
	}
}
