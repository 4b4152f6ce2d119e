package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-match-api/internal/models"
)

// MatchRepository stores the linked rows a match run produces. Only rows
// that resolved to exactly one roster student are persisted; unmatched and
// ambiguous rows live in the report for manual review.
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository constructs a MatchRepository.
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateBatch inserts all matched records of a run in one transaction.
func (r *MatchRepository) CreateBatch(ctx context.Context, records []models.MatchedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin matched rows insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO matched_rows (id, report_id, student_id, matched_by, confidence, band, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		rec := records[i]
		if _, err := tx.ExecContext(ctx, insert, rec.ID, rec.ReportID, rec.StudentID, rec.MatchedBy, rec.Confidence, rec.Band, rec.Payload, rec.CreatedAt); err != nil {
			return fmt.Errorf("insert matched row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit matched rows insert: %w", err)
	}
	return nil
}

// ListByReport returns the matched records of one run ordered by creation.
func (r *MatchRepository) ListByReport(ctx context.Context, reportID string) ([]models.MatchedRecord, error) {
	const query = `SELECT id, report_id, student_id, matched_by, confidence, band, payload, created_at
        FROM matched_rows WHERE report_id = $1 ORDER BY created_at ASC, id ASC`
	var records []models.MatchedRecord
	if err := r.db.SelectContext(ctx, &records, query, reportID); err != nil {
		return nil, fmt.Errorf("list matched rows: %w", err)
	}
	return records, nil
}

// DeleteByReport removes the matched records of one run.
func (r *MatchRepository) DeleteByReport(ctx context.Context, reportID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM matched_rows WHERE report_id = $1", reportID); err != nil {
		return fmt.Errorf("delete matched rows: %w", err)
	}
	return nil
}
