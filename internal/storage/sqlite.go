package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queryable abstracts *sql.DB and *sql.Tx so correction and rule queries can
// run either standalone or inside a transaction.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Correction methods delegate to the shared implementations with the transaction.
func (t *sqliteTransaction) RecordCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(correction); err != nil {
		return err
	}
	return recordCorrection(ctx, t.tx, correction)
}

func (t *sqliteTransaction) RecordCorrectionsBatch(ctx context.Context, corrections []model.Correction) (service.BatchResult, error) {
	if err := validateContext(ctx); err != nil {
		return service.BatchResult{}, err
	}
	return recordCorrectionsBatch(ctx, t.tx, corrections)
}

func (t *sqliteTransaction) GetUnprocessedCorrections(ctx context.Context, since time.Time) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnprocessedCorrections(ctx, t.tx, since)
}

func (t *sqliteTransaction) GetRecentCorrections(ctx context.Context, since time.Time, limit int) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getRecentCorrections(ctx, t.tx, since, limit)
}

func (t *sqliteTransaction) CountCorrections(ctx context.Context, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return countCorrections(ctx, t.tx, since)
}

func (t *sqliteTransaction) MarkCorrectionsProcessed(ctx context.Context, ids []string, ruleID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return markCorrectionsProcessed(ctx, t.tx, ids, ruleID)
}

// Rule methods.
func (t *sqliteTransaction) CreateCategoryRule(ctx context.Context, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategoryRule(rule); err != nil {
		return err
	}
	return createCategoryRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) GetCategoryRule(ctx context.Context, id int64) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategoryRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetActiveCategoryRules(ctx context.Context) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getActiveCategoryRules(ctx, t.tx)
}

func (t *sqliteTransaction) FindCategoryRule(ctx context.Context, pattern string, categoryID int64) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return findCategoryRule(ctx, t.tx, pattern, categoryID)
}

func (t *sqliteTransaction) IncrementRuleUseCount(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return incrementRuleUseCount(ctx, t.tx, id)
}

func (t *sqliteTransaction) DeactivateCategoryRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return deactivateCategoryRule(ctx, t.tx, id)
}

// Category methods.
func (t *sqliteTransaction) GetCategories(ctx context.Context) ([]model.Category, error) {
	return getCategories(ctx, t.tx)
}

func (t *sqliteTransaction) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	return getCategoryByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	return getCategoryByName(ctx, t.tx, name)
}

func (t *sqliteTransaction) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	return createCategory(ctx, t.tx, name, description)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
