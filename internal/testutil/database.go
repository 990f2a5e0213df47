// Package testutil provides test utilities for the clover project.
package testutil

import (
	"context"
	"testing"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/storage"
)

// TestDB represents a test database with seeded categories.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	Categories map[string]model.Category
	t          *testing.T
}

// SetupTestDB creates a new in-memory test database with the given
// categories. It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T, categoryNames ...string) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	categories := make(map[string]model.Category, len(categoryNames))
	for _, name := range categoryNames {
		cat, err := store.CreateCategory(ctx, name, "")
		if err != nil {
			t.Fatalf("failed to seed category %q: %v", name, err)
		}
		categories[name] = *cat
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage:    store,
		Categories: categories,
		t:          t,
	}
}

// CategoryID returns the ID of a seeded category or fails the test.
func (db *TestDB) CategoryID(name string) int64 {
	db.t.Helper()
	cat, ok := db.Categories[name]
	if !ok {
		db.t.Fatalf("category %q was not seeded", name)
	}
	return cat.ID
}
