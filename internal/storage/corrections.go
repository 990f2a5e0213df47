package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/service"
)

// RecordCorrection appends one correction to the log. Corrections carry
// client-generated IDs, so replaying the same insert is a no-op and the
// write path stays safe to retry.
func (s *SQLiteStorage) RecordCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(correction); err != nil {
		return err
	}
	return recordCorrection(ctx, s.db, correction)
}

// RecordCorrectionsBatch appends a batch of corrections. Rows that fail
// validation or the insert are counted as failed; the rest still land.
func (s *SQLiteStorage) RecordCorrectionsBatch(ctx context.Context, corrections []model.Correction) (service.BatchResult, error) {
	if err := validateContext(ctx); err != nil {
		return service.BatchResult{}, err
	}
	return recordCorrectionsBatch(ctx, s.db, corrections)
}

// GetUnprocessedCorrections returns corrections created at or after since
// that have not yet been linked to a rule, oldest first.
func (s *SQLiteStorage) GetUnprocessedCorrections(ctx context.Context, since time.Time) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnprocessedCorrections(ctx, s.db, since)
}

// GetRecentCorrections returns the newest corrections in the window,
// processed or not, capped at limit.
func (s *SQLiteStorage) GetRecentCorrections(ctx context.Context, since time.Time, limit int) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getRecentCorrections(ctx, s.db, since, limit)
}

// CountCorrections returns the number of corrections created at or after since.
func (s *SQLiteStorage) CountCorrections(ctx context.Context, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return countCorrections(ctx, s.db, since)
}

// MarkCorrectionsProcessed links the given corrections to the rule created
// from them. Rows already linked to the same rule are left untouched, so
// the call is idempotent; an empty id list is a no-op.
func (s *SQLiteStorage) MarkCorrectionsProcessed(ctx context.Context, ids []string, ruleID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return markCorrectionsProcessed(ctx, s.db, ids, ruleID)
}

func recordCorrection(ctx context.Context, q queryable, correction *model.Correction) error {
	if correction.CreatedAt.IsZero() {
		correction.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT OR IGNORE INTO corrections (
			id, description, original_category_id, corrected_category_id,
			original_source, import_session_id, created_rule_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		correction.ID, correction.Description,
		nullInt64(correction.OriginalCategoryID), correction.CorrectedCategoryID,
		sourceToNullString(correction.OriginalSource), nullString(correction.ImportSessionID),
		nullInt64(correction.CreatedRuleID), correction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record correction: %w", err)
	}

	return nil
}

func recordCorrectionsBatch(ctx context.Context, q queryable, corrections []model.Correction) (service.BatchResult, error) {
	var result service.BatchResult

	for i := range corrections {
		if err := validateCorrection(&corrections[i]); err != nil {
			result.Failed++
			slog.Warn("skipping invalid correction in batch", "index", i, "error", err)
			continue
		}
		if err := recordCorrection(ctx, q, &corrections[i]); err != nil {
			result.Failed++
			slog.Warn("failed to record correction in batch", "id", corrections[i].ID, "error", err)
			continue
		}
		result.Recorded++
	}

	return result, nil
}

const correctionColumns = `id, description, original_category_id, corrected_category_id,
		original_source, import_session_id, created_rule_id, created_at`

func getUnprocessedCorrections(ctx context.Context, q queryable, since time.Time) ([]model.Correction, error) {
	query := `
		SELECT ` + correctionColumns + `
		FROM corrections
		WHERE created_at >= ? AND created_rule_id IS NULL
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCorrections(rows)
}

func getRecentCorrections(ctx context.Context, q queryable, since time.Time, limit int) ([]model.Correction, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + correctionColumns + `
		FROM corrections
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := q.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCorrections(rows)
}

func countCorrections(ctx context.Context, q queryable, since time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM corrections WHERE created_at >= ?", since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count corrections: %w", err)
	}
	return count, nil
}

func markCorrectionsProcessed(ctx context.Context, q queryable, ids []string, ruleID int64) error {
	if len(ids) == 0 {
		return nil
	}
	if ruleID <= 0 {
		return fmt.Errorf("%w: rule ID must be positive", ErrInvalidRule)
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	// Rows already linked to this rule match the second disjunct and are
	// rewritten to the same value, keeping the call idempotent. Rows linked
	// to a different rule are never touched.
	query := fmt.Sprintf(`
		UPDATE corrections
		SET created_rule_id = ?
		WHERE id IN (%s) AND (created_rule_id IS NULL OR created_rule_id = ?)
	`, placeholders)

	args := make([]any, 0, len(ids)+2)
	args = append(args, ruleID)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, ruleID)

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark corrections processed: %w", err)
	}

	return nil
}

func scanCorrections(rows *sql.Rows) ([]model.Correction, error) {
	var corrections []model.Correction
	for rows.Next() {
		var c model.Correction
		var originalCategoryID, createdRuleID sql.NullInt64
		var originalSource, importSessionID sql.NullString
		err := rows.Scan(
			&c.ID, &c.Description, &originalCategoryID, &c.CorrectedCategoryID,
			&originalSource, &importSessionID, &createdRuleID, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.OriginalCategoryID = int64Ptr(originalCategoryID)
		c.CreatedRuleID = int64Ptr(createdRuleID)
		c.OriginalSource = nullStringToSource(originalSource)
		c.ImportSessionID = stringPtr(importSessionID)
		corrections = append(corrections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating corrections: %w", err)
	}

	return corrections, nil
}

// Null conversion helpers.

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(ns sql.NullInt64) *int64 {
	if !ns.Valid {
		return nil
	}
	v := ns.Int64
	return &v
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func sourceToNullString(src *model.CorrectionSource) sql.NullString {
	if src == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*src), Valid: true}
}

func nullStringToSource(ns sql.NullString) *model.CorrectionSource {
	if !ns.Valid {
		return nil
	}
	src := model.CorrectionSource(ns.String)
	return &src
}
