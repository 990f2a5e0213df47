package learning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/service"
)

// Materializer turns accepted suggestions into persisted category rules and
// back-links the evidence corrections. Both writes run in one storage
// transaction, so a failure can never leave a rule without provenance.
type Materializer struct {
	storage service.Storage
}

// NewMaterializer creates a materializer over the given storage.
func NewMaterializer(storage service.Storage) *Materializer {
	return &Materializer{storage: storage}
}

// Accept creates a rule from the suggestion and marks its evidence
// corrections as processed. Errors propagate to the caller: the user is
// actively waiting on this action and gets to retry.
//
// Accept is not idempotent; calling it twice for the same suggestion
// creates duplicate rules. Callers guard against repeat submission.
func (m *Materializer) Accept(ctx context.Context, suggestion model.RuleSuggestion) (*model.CategoryRule, error) {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin acceptance transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rule := &model.CategoryRule{
		Pattern:    suggestion.Pattern,
		MatchType:  suggestion.MatchType,
		CategoryID: suggestion.CategoryID,
		Confidence: suggestion.Confidence,
	}

	if err := tx.CreateCategoryRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create category rule: %w", err)
	}

	if err := tx.MarkCorrectionsProcessed(ctx, suggestion.CorrectionIDs, rule.ID); err != nil {
		return nil, fmt.Errorf("failed to mark corrections processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit acceptance: %w", err)
	}

	slog.Info("materialized rule from suggestion",
		"rule_id", rule.ID,
		"pattern", rule.Pattern,
		"match_type", rule.MatchType,
		"category_id", rule.CategoryID,
		"corrections", len(suggestion.CorrectionIDs))

	return rule, nil
}
