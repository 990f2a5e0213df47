// Package storage provides the data persistence layer for the clover application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloverfin/clover/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidCorrection = errors.New("invalid correction")
	ErrInvalidRule       = errors.New("invalid category rule")
	ErrRuleNotFound      = errors.New("category rule not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCorrection validates a single correction.
func validateCorrection(correction *model.Correction) error {
	if correction == nil {
		return fmt.Errorf("%w: correction", ErrNilParameter)
	}
	if correction.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidCorrection)
	}
	if strings.TrimSpace(correction.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidCorrection)
	}
	if correction.CorrectedCategoryID <= 0 {
		return fmt.Errorf("%w: missing corrected category", ErrInvalidCorrection)
	}
	if correction.OriginalSource != nil && !model.ValidCorrectionSource(*correction.OriginalSource) {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidCorrection, *correction.OriginalSource)
	}
	return nil
}

// validateCategoryRule validates a category rule.
func validateCategoryRule(rule *model.CategoryRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.Pattern, "pattern"); err != nil {
		return err
	}
	if !model.ValidMatchType(rule.MatchType) {
		return fmt.Errorf("%w: invalid match type %q", ErrInvalidRule, rule.MatchType)
	}
	if rule.CategoryID <= 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidRule)
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRule)
	}
	return nil
}
