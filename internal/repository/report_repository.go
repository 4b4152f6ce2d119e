package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-match-api/internal/models"
)

// ReportRepository persists matching reports. Reports are retained for
// audit even after the roster they were produced against is replaced.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, dataset_label, source_type, status, total_rows, total_enrolled, matched_count,
        unmatched_count, ambiguous_count, duplicate_matches, match_rate, bands, unmatched_names, failure_reason, created_at`

// Create inserts a new report row.
func (r *ReportRepository) Create(ctx context.Context, report *models.MatchingReport) error {
	const query = `INSERT INTO match_reports (` + reportColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.DatasetLabel,
		report.SourceType,
		report.Status,
		report.TotalRows,
		report.TotalEnrolled,
		report.MatchedCount,
		report.UnmatchedCount,
		report.AmbiguousCount,
		report.DuplicateMatches,
		report.MatchRate,
		report.Bands,
		report.UnmatchedNames,
		report.FailureReason,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Update rewrites the mutable portion of a report. Used only to complete
// or fail asynchronous runs; completed reports are immutable.
func (r *ReportRepository) Update(ctx context.Context, report *models.MatchingReport) error {
	const query = `UPDATE match_reports SET status = $2, total_rows = $3, total_enrolled = $4, matched_count = $5,
        unmatched_count = $6, ambiguous_count = $7, duplicate_matches = $8, match_rate = $9, bands = $10,
        unmatched_names = $11, failure_reason = $12 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.Status,
		report.TotalRows,
		report.TotalEnrolled,
		report.MatchedCount,
		report.UnmatchedCount,
		report.AmbiguousCount,
		report.DuplicateMatches,
		report.MatchRate,
		report.Bands,
		report.UnmatchedNames,
		report.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns one report.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.MatchingReport, error) {
	query := `SELECT ` + reportColumns + ` FROM match_reports WHERE id = $1 LIMIT 1`
	var report models.MatchingReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return &report, nil
}

// List returns reports matching the provided filters, newest first.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.MatchingReport, int, error) {
	base := "FROM match_reports"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.SourceType != "" {
		conditions = append(conditions, fmt.Sprintf("source_type = $%d", len(args)+1))
		args = append(args, filter.SourceType)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT `+reportColumns+` %s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d`, base, size, offset)

	var reports []models.MatchingReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	return reports, total, nil
}
