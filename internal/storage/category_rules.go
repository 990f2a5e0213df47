package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloverfin/clover/internal/model"
)

// CreateCategoryRule creates a new category rule.
func (s *SQLiteStorage) CreateCategoryRule(ctx context.Context, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategoryRule(rule); err != nil {
		return err
	}
	return createCategoryRule(ctx, s.db, rule)
}

// GetCategoryRule retrieves a category rule by ID.
func (s *SQLiteStorage) GetCategoryRule(ctx context.Context, id int64) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategoryRule(ctx, s.db, id)
}

// GetActiveCategoryRules retrieves all active category rules.
func (s *SQLiteStorage) GetActiveCategoryRules(ctx context.Context) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getActiveCategoryRules(ctx, s.db)
}

// FindCategoryRule looks up an active rule by pattern and category.
// Patterns are compared case-insensitively. Returns nil when absent.
func (s *SQLiteStorage) FindCategoryRule(ctx context.Context, pattern string, categoryID int64) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return findCategoryRule(ctx, s.db, pattern, categoryID)
}

// IncrementRuleUseCount increments the use count for a category rule.
func (s *SQLiteStorage) IncrementRuleUseCount(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return incrementRuleUseCount(ctx, s.db, id)
}

// DeactivateCategoryRule deactivates a category rule without deleting it.
func (s *SQLiteStorage) DeactivateCategoryRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return deactivateCategoryRule(ctx, s.db, id)
}

func createCategoryRule(ctx context.Context, q queryable, rule *model.CategoryRule) error {
	// Verify category exists
	var categoryCount int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE id = ? AND is_active = 1",
		rule.CategoryID).Scan(&categoryCount)
	if err != nil {
		return fmt.Errorf("failed to verify category: %w", err)
	}
	if categoryCount == 0 {
		return fmt.Errorf("category %d does not exist or is inactive", rule.CategoryID)
	}

	query := `
		INSERT INTO category_rules (pattern, match_type, category_id, confidence, is_active)
		VALUES (?, ?, ?, ?, 1)
	`

	result, err := q.ExecContext(ctx, query,
		rule.Pattern, string(rule.MatchType), rule.CategoryID, rule.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to create category rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category rule ID: %w", err)
	}

	rule.ID = id
	rule.IsActive = true
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

const categoryRuleColumns = `id, pattern, match_type, category_id, confidence,
		use_count, is_active, created_at, updated_at`

func getCategoryRule(ctx context.Context, q queryable, id int64) (*model.CategoryRule, error) {
	query := `
		SELECT ` + categoryRuleColumns + `
		FROM category_rules
		WHERE id = ?
	`

	rule, err := scanCategoryRule(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get category rule: %w", err)
	}

	return rule, nil
}

func getActiveCategoryRules(ctx context.Context, q queryable) ([]model.CategoryRule, error) {
	query := `
		SELECT ` + categoryRuleColumns + `
		FROM category_rules
		WHERE is_active = 1
		ORDER BY use_count DESC, id ASC
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active category rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategoryRule
	for rows.Next() {
		var rule model.CategoryRule
		var matchType string
		err := rows.Scan(
			&rule.ID, &rule.Pattern, &matchType, &rule.CategoryID, &rule.Confidence,
			&rule.UseCount, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category rule: %w", err)
		}
		rule.MatchType = model.MatchType(matchType)
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rules: %w", err)
	}

	return rules, nil
}

func findCategoryRule(ctx context.Context, q queryable, pattern string, categoryID int64) (*model.CategoryRule, error) {
	query := `
		SELECT ` + categoryRuleColumns + `
		FROM category_rules
		WHERE LOWER(pattern) = LOWER(?) AND category_id = ? AND is_active = 1
		LIMIT 1
	`

	rule, err := scanCategoryRule(q.QueryRowContext(ctx, query, pattern, categoryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No matching rule
		}
		return nil, fmt.Errorf("failed to find category rule: %w", err)
	}

	return rule, nil
}

func incrementRuleUseCount(ctx context.Context, q queryable, id int64) error {
	query := `UPDATE category_rules SET use_count = use_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment rule use count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

func deactivateCategoryRule(ctx context.Context, q queryable, id int64) error {
	query := `UPDATE category_rules SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate category rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

func scanCategoryRule(row *sql.Row) (*model.CategoryRule, error) {
	var rule model.CategoryRule
	var matchType string
	err := row.Scan(
		&rule.ID, &rule.Pattern, &matchType, &rule.CategoryID, &rule.Confidence,
		&rule.UseCount, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.MatchType = model.MatchType(matchType)
	return &rule, nil
}
