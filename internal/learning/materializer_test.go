package learning

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/testutil"
)

func seedCorrections(t *testing.T, db *testutil.TestDB, description string, categoryID int64, count int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		c := &model.Correction{
			ID:                  uuid.New().String(),
			Description:         description,
			CorrectedCategoryID: categoryID,
			CreatedAt:           time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Storage.RecordCorrection(ctx, c))
	}
}

func TestMaterializerAcceptCreatesRuleAndRetiresEvidence(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, "Shopping")
	categoryID := db.CategoryID("Shopping")

	seedCorrections(t, db, "AMZN MKTP UK", categoryID, 3)

	analyzer := NewAnalyzer(db.Storage, db.Storage, Config{})
	report, err := analyzer.Analyze(ctx)
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)

	suggestion := report.Suggestions[0]
	require.Equal(t, "AMZN MKTP UK", suggestion.Pattern)

	materializer := NewMaterializer(db.Storage)
	rule, err := materializer.Accept(ctx, suggestion)
	require.NoError(t, err)
	require.NotZero(t, rule.ID)
	assert.Equal(t, model.MatchExact, rule.MatchType)
	assert.Equal(t, categoryID, rule.CategoryID)
	assert.InDelta(t, 0.85, rule.Confidence, 1e-9)

	// The rule is live.
	rules, err := db.Storage.GetActiveCategoryRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "AMZN MKTP UK", rules[0].Pattern)

	// The evidence never resurfaces.
	report, err = analyzer.Analyze(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Suggestions)
	assert.Equal(t, 3, report.TotalCorrections)
}

func TestMaterializerAcceptFailsForUnknownCategory(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, "Shopping")
	categoryID := db.CategoryID("Shopping")

	seedCorrections(t, db, "AMZN MKTP UK", categoryID, 3)

	analyzer := NewAnalyzer(db.Storage, db.Storage, Config{})
	report, err := analyzer.Analyze(ctx)
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)

	suggestion := report.Suggestions[0]
	suggestion.CategoryID = 999

	materializer := NewMaterializer(db.Storage)
	_, err = materializer.Accept(ctx, suggestion)
	require.Error(t, err)

	// The failed transaction left nothing behind.
	rules, err := db.Storage.GetActiveCategoryRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	report, err = analyzer.Analyze(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Suggestions, 1, "the evidence stays available after a rollback")
}

func TestMaterializerAcceptDistinctCategories(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, "Groceries", "Transport")

	seedCorrections(t, db, "TESCO EXPRESS", db.CategoryID("Groceries"), 3)
	for i := 0; i < 4; i++ {
		c := &model.Correction{
			ID:                  uuid.New().String(),
			Description:         fmt.Sprintf("UBER TRIP %04d", i),
			CorrectedCategoryID: db.CategoryID("Transport"),
			CreatedAt:           time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Storage.RecordCorrection(ctx, c))
	}

	analyzer := NewAnalyzer(db.Storage, db.Storage, Config{})
	materializer := NewMaterializer(db.Storage)

	report, err := analyzer.Analyze(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Suggestions)

	for _, s := range report.Suggestions {
		if s.Pattern == "uber" || s.Pattern == "TESCO EXPRESS" {
			_, err := materializer.Accept(ctx, s)
			require.NoError(t, err)
		}
	}

	rules, err := db.Storage.GetActiveCategoryRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}
