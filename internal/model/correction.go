// Package model defines the core data structures for the clover application.
package model

import (
	"time"
)

// CorrectionSource records which part of the categorisation engine produced
// the assignment the user overrode.
type CorrectionSource string

// Correction source constants, matching the categorisation engine's match provenance.
const (
	SourceExactRule   CorrectionSource = "exact-rule"
	SourcePatternRule CorrectionSource = "pattern-rule"
	SourceSimilarity  CorrectionSource = "similarity"
	SourceAIAssisted  CorrectionSource = "ai-assisted"
	SourceNone        CorrectionSource = "none"
)

// ValidCorrectionSource reports whether s is a known provenance tag.
func ValidCorrectionSource(s CorrectionSource) bool {
	switch s {
	case SourceExactRule, SourcePatternRule, SourceSimilarity, SourceAIAssisted, SourceNone:
		return true
	}
	return false
}

// Correction is one record of a user overriding an automatically assigned
// transaction category. Rows are append-only: after insert the only field
// that ever changes is CreatedRuleID, set exactly once when a suggestion
// derived from this correction is accepted.
type Correction struct {
	CreatedAt           time.Time         `json:"created_at"`
	OriginalCategoryID  *int64            `json:"original_category_id,omitempty"`
	OriginalSource      *CorrectionSource `json:"original_source,omitempty"`
	ImportSessionID     *string           `json:"import_session_id,omitempty"`
	CreatedRuleID       *int64            `json:"created_rule_id,omitempty"`
	ID                  string            `json:"id"`
	Description         string            `json:"description"`
	CorrectedCategoryID int64             `json:"corrected_category_id"`
}

// Processed reports whether this correction has been linked to a created rule
// and therefore no longer participates in analysis.
func (c *Correction) Processed() bool {
	return c.CreatedRuleID != nil
}
