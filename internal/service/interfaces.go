// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/cloverfin/clover/internal/model"
)

// BatchResult summarises a bulk correction write.
type BatchResult struct {
	Recorded int
	Failed   int
}

// CorrectionStore is the append-only correction log.
type CorrectionStore interface {
	// RecordCorrection inserts one correction. Inserting the same client ID
	// twice is a no-op, so retries are safe.
	RecordCorrection(ctx context.Context, correction *model.Correction) error
	// RecordCorrectionsBatch inserts a batch; rows the store could not
	// confirm are counted as failed regardless of cause.
	RecordCorrectionsBatch(ctx context.Context, corrections []model.Correction) (BatchResult, error)
	// GetUnprocessedCorrections returns corrections created at or after
	// since whose created_rule_id is still null, oldest first.
	GetUnprocessedCorrections(ctx context.Context, since time.Time) ([]model.Correction, error)
	// GetRecentCorrections returns the most recently created corrections in
	// the window, newest first, capped at limit.
	GetRecentCorrections(ctx context.Context, since time.Time, limit int) ([]model.Correction, error)
	// CountCorrections returns the number of corrections created at or
	// after since, processed or not.
	CountCorrections(ctx context.Context, since time.Time) (int, error)
	// MarkCorrectionsProcessed sets created_rule_id on exactly the given
	// rows. Re-marking rows already linked to the same rule is a no-op;
	// an empty id list is a no-op success.
	MarkCorrectionsProcessed(ctx context.Context, ids []string, ruleID int64) error
}

// RuleStore persists category rules for the categorisation engine to consume.
type RuleStore interface {
	CreateCategoryRule(ctx context.Context, rule *model.CategoryRule) error
	GetCategoryRule(ctx context.Context, id int64) (*model.CategoryRule, error)
	GetActiveCategoryRules(ctx context.Context) ([]model.CategoryRule, error)
	FindCategoryRule(ctx context.Context, pattern string, categoryID int64) (*model.CategoryRule, error)
	IncrementRuleUseCount(ctx context.Context, id int64) error
	DeactivateCategoryRule(ctx context.Context, id int64) error
}

// CategoryStore provides read/write access to categories.
type CategoryStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	CorrectionStore
	RuleStore
	CategoryStore

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
