package storage

import (
	"context"
	"testing"
	"time"

	"github.com/cloverfin/clover/internal/model"
)

func TestRecordCorrection(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	categoryID := createTestCategory(t, store, "Groceries")

	t.Run("records and reads back", func(t *testing.T) {
		source := model.SourceExactRule
		sessionID := "session-1"
		originalCategory := int64(42)
		correction := model.Correction{
			ID:                  "corr-full-001",
			Description:         "TESCO EXPRESS 1234",
			OriginalCategoryID:  &originalCategory,
			CorrectedCategoryID: categoryID,
			OriginalSource:      &source,
			ImportSessionID:     &sessionID,
			CreatedAt:           time.Now().UTC().Add(-time.Hour),
		}
		if err := store.RecordCorrection(ctx, &correction); err != nil {
			t.Fatalf("Failed to record correction: %v", err)
		}

		got, err := store.GetUnprocessedCorrections(ctx, time.Time{})
		if err != nil {
			t.Fatalf("Failed to get corrections: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("Got %d corrections, want 1", len(got))
		}
		c := got[0]
		if c.ID != correction.ID || c.Description != correction.Description {
			t.Errorf("Got correction %+v, want %+v", c, correction)
		}
		if c.OriginalCategoryID == nil || *c.OriginalCategoryID != originalCategory {
			t.Errorf("OriginalCategoryID = %v, want %d", c.OriginalCategoryID, originalCategory)
		}
		if c.OriginalSource == nil || *c.OriginalSource != source {
			t.Errorf("OriginalSource = %v, want %s", c.OriginalSource, source)
		}
		if c.ImportSessionID == nil || *c.ImportSessionID != sessionID {
			t.Errorf("ImportSessionID = %v, want %s", c.ImportSessionID, sessionID)
		}
		if c.CreatedRuleID != nil {
			t.Errorf("CreatedRuleID = %v, want nil", c.CreatedRuleID)
		}
	})

	t.Run("replaying the same ID is a no-op", func(t *testing.T) {
		correction := createTestCorrections(categoryID, "duplicate insert", 1)[0]
		if err := store.RecordCorrection(ctx, &correction); err != nil {
			t.Fatalf("First insert failed: %v", err)
		}

		// Retry with the same ID but different text: original row wins.
		retry := correction
		retry.Description = "changed text"
		if err := store.RecordCorrection(ctx, &retry); err != nil {
			t.Fatalf("Replay failed: %v", err)
		}

		got, err := store.GetUnprocessedCorrections(ctx, time.Time{})
		if err != nil {
			t.Fatalf("Failed to get corrections: %v", err)
		}
		found := 0
		for _, c := range got {
			if c.ID == correction.ID {
				found++
				if c.Description != "duplicate insert" {
					t.Errorf("Replay overwrote description: %q", c.Description)
				}
			}
		}
		if found != 1 {
			t.Errorf("Found %d rows for ID %s, want 1", found, correction.ID)
		}
	})

	t.Run("rejects invalid corrections", func(t *testing.T) {
		tests := []struct {
			name       string
			correction model.Correction
		}{
			{name: "missing ID", correction: model.Correction{Description: "x", CorrectedCategoryID: categoryID}},
			{name: "missing description", correction: model.Correction{ID: "c1", CorrectedCategoryID: categoryID}},
			{name: "blank description", correction: model.Correction{ID: "c1", Description: "   ", CorrectedCategoryID: categoryID}},
			{name: "missing category", correction: model.Correction{ID: "c1", Description: "x"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := tt.correction
				if err := store.RecordCorrection(ctx, &c); err == nil {
					t.Error("Expected validation error")
				}
			})
		}
	})

	t.Run("fills CreatedAt when zero", func(t *testing.T) {
		correction := model.Correction{
			ID:                  "corr-nots-001",
			Description:         "no timestamp",
			CorrectedCategoryID: categoryID,
		}
		if err := store.RecordCorrection(ctx, &correction); err != nil {
			t.Fatalf("Failed to record correction: %v", err)
		}
		if correction.CreatedAt.IsZero() {
			t.Error("CreatedAt was not filled")
		}
	})
}

func TestRecordCorrectionsBatch(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	categoryID := createTestCategory(t, store, "Transport")

	batch := createTestCorrections(categoryID, "uber trip", 3)
	// One invalid row; the rest must still land.
	batch = append(batch, model.Correction{ID: "", Description: "invalid", CorrectedCategoryID: categoryID})

	result, err := store.RecordCorrectionsBatch(ctx, batch)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if result.Recorded != 3 {
		t.Errorf("Recorded = %d, want 3", result.Recorded)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}

	count, err := store.CountCorrections(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}

func TestGetUnprocessedCorrections(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	categoryID := createTestCategory(t, store, "Groceries")
	now := time.Now().UTC()

	inside := model.Correction{
		ID: "corr-in", Description: "inside window",
		CorrectedCategoryID: categoryID, CreatedAt: now.Add(-time.Hour),
	}
	boundary := model.Correction{
		ID: "corr-edge", Description: "exactly at window start",
		CorrectedCategoryID: categoryID, CreatedAt: now.Add(-48 * time.Hour),
	}
	outside := model.Correction{
		ID: "corr-out", Description: "before window",
		CorrectedCategoryID: categoryID, CreatedAt: now.Add(-48*time.Hour - time.Second),
	}
	for _, c := range []model.Correction{inside, boundary, outside} {
		c := c
		if err := store.RecordCorrection(ctx, &c); err != nil {
			t.Fatalf("Failed to record %s: %v", c.ID, err)
		}
	}

	t.Run("window lower bound is inclusive", func(t *testing.T) {
		got, err := store.GetUnprocessedCorrections(ctx, boundary.CreatedAt)
		if err != nil {
			t.Fatalf("Failed to get corrections: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Got %d corrections, want 2", len(got))
		}
		// Oldest first.
		if got[0].ID != "corr-edge" || got[1].ID != "corr-in" {
			t.Errorf("Got order [%s %s], want [corr-edge corr-in]", got[0].ID, got[1].ID)
		}
	})

	t.Run("processed rows excluded", func(t *testing.T) {
		ruleID := createTestRule(t, store, categoryID, "inside window")
		if err := store.MarkCorrectionsProcessed(ctx, []string{"corr-in"}, ruleID); err != nil {
			t.Fatalf("Failed to mark processed: %v", err)
		}

		got, err := store.GetUnprocessedCorrections(ctx, time.Time{})
		if err != nil {
			t.Fatalf("Failed to get corrections: %v", err)
		}
		for _, c := range got {
			if c.ID == "corr-in" {
				t.Error("Processed correction still returned as unprocessed")
			}
		}
	})
}

func TestGetRecentCorrections(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	categoryID := createTestCategory(t, store, "Groceries")

	corrections := createTestCorrections(categoryID, "recent test", 15)
	for i := range corrections {
		if err := store.RecordCorrection(ctx, &corrections[i]); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}

	got, err := store.GetRecentCorrections(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("Failed to get recent corrections: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("Got %d corrections, want 10", len(got))
	}
	// Newest first.
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("Corrections out of order at %d", i)
		}
	}
	if got[0].ID != corrections[14].ID {
		t.Errorf("Newest = %s, want %s", got[0].ID, corrections[14].ID)
	}
}

func TestMarkCorrectionsProcessed(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	categoryID := createTestCategory(t, store, "Groceries")

	corrections := createTestCorrections(categoryID, "mark test", 3)
	ids := make([]string, len(corrections))
	for i := range corrections {
		if err := store.RecordCorrection(ctx, &corrections[i]); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
		ids[i] = corrections[i].ID
	}

	ruleID := createTestRule(t, store, categoryID, "mark test")
	otherRuleID := createTestRule(t, store, categoryID, "other rule")

	t.Run("empty list is a no-op", func(t *testing.T) {
		if err := store.MarkCorrectionsProcessed(ctx, nil, ruleID); err != nil {
			t.Errorf("Empty list returned error: %v", err)
		}
	})

	t.Run("rejects non-positive rule ID", func(t *testing.T) {
		if err := store.MarkCorrectionsProcessed(ctx, ids, 0); err == nil {
			t.Error("Expected error for rule ID 0")
		}
	})

	t.Run("links and is idempotent", func(t *testing.T) {
		if err := store.MarkCorrectionsProcessed(ctx, ids, ruleID); err != nil {
			t.Fatalf("Failed to mark processed: %v", err)
		}
		// Replay with the same rule.
		if err := store.MarkCorrectionsProcessed(ctx, ids, ruleID); err != nil {
			t.Fatalf("Replay failed: %v", err)
		}

		got, err := store.GetRecentCorrections(ctx, time.Time{}, 10)
		if err != nil {
			t.Fatalf("Failed to get corrections: %v", err)
		}
		for _, c := range got {
			if c.CreatedRuleID == nil || *c.CreatedRuleID != ruleID {
				t.Errorf("Correction %s not linked to rule %d: %v", c.ID, ruleID, c.CreatedRuleID)
			}
		}
	})

	t.Run("never relinks to a different rule", func(t *testing.T) {
		if err := store.MarkCorrectionsProcessed(ctx, ids, otherRuleID); err != nil {
			t.Fatalf("Mark with other rule failed: %v", err)
		}

		got, err := store.GetRecentCorrections(ctx, time.Time{}, 10)
		if err != nil {
			t.Fatalf("Failed to get corrections: %v", err)
		}
		for _, c := range got {
			if c.CreatedRuleID == nil || *c.CreatedRuleID != ruleID {
				t.Errorf("Correction %s was relinked: %v", c.ID, c.CreatedRuleID)
			}
		}
	})
}
