package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloverfin/clover/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create a seeded category and return its ID.
func createTestCategory(t *testing.T, store *SQLiteStorage, name string) int64 {
	t.Helper()
	cat, err := store.CreateCategory(context.Background(), name, "")
	if err != nil {
		t.Fatalf("Failed to create category %q: %v", name, err)
	}
	return cat.ID
}

// Helper function to create test corrections.
func createTestCorrections(categoryID int64, description string, count int) []model.Correction {
	corrections := make([]model.Correction, count)
	baseTime := time.Now().UTC().Add(-24 * time.Hour)

	for i := 0; i < count; i++ {
		corrections[i] = model.Correction{
			ID:                  fmt.Sprintf("corr-%s-%03d", description[:3], i),
			Description:         description,
			CorrectedCategoryID: categoryID,
			CreatedAt:           baseTime.Add(time.Duration(i) * time.Minute),
		}
	}
	return corrections
}

func TestMigrateIsIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}

	var version int
	if err := store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("Schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestTransactionCommitAndRollback(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	categoryID := createTestCategory(t, store, "Groceries")

	t.Run("rollback discards writes", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		if err != nil {
			t.Fatalf("Failed to begin transaction: %v", err)
		}

		correction := createTestCorrections(categoryID, "rollback test", 1)[0]
		if err := tx.RecordCorrection(ctx, &correction); err != nil {
			t.Fatalf("Failed to record correction in tx: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Failed to rollback: %v", err)
		}

		count, err := store.CountCorrections(ctx, time.Time{})
		if err != nil {
			t.Fatalf("Failed to count corrections: %v", err)
		}
		if count != 0 {
			t.Errorf("Count after rollback = %d, want 0", count)
		}
	})

	t.Run("commit persists writes", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		if err != nil {
			t.Fatalf("Failed to begin transaction: %v", err)
		}

		correction := createTestCorrections(categoryID, "commit test", 1)[0]
		if err := tx.RecordCorrection(ctx, &correction); err != nil {
			t.Fatalf("Failed to record correction in tx: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}

		count, err := store.CountCorrections(ctx, time.Time{})
		if err != nil {
			t.Fatalf("Failed to count corrections: %v", err)
		}
		if count != 1 {
			t.Errorf("Count after commit = %d, want 1", count)
		}
	})

	t.Run("nested transactions rejected", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		if err != nil {
			t.Fatalf("Failed to begin transaction: %v", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.BeginTx(ctx); err == nil {
			t.Error("Expected nested transaction to fail")
		}
		if err := tx.Migrate(ctx); err == nil {
			t.Error("Expected migrate inside transaction to fail")
		}
	})
}
