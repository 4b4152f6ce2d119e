package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-match-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	report := &models.MatchingReport{
		ID:           "rep-1",
		DatasetLabel: "fall-export.csv",
		SourceType:   "benchmark",
		Status:       models.ReportStatusCompleted,
		TotalRows:    10,
		MatchedCount: 8,
		MatchRate:    80,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO match_reports")).
		WithArgs("rep-1", "fall-export.csv", "benchmark", models.ReportStatusCompleted, 10, 0, 8, 0, 0, 0, 80.0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), report))

	rows := sqlmock.NewRows([]string{"id", "dataset_label", "source_type", "status", "total_rows", "total_enrolled",
		"matched_count", "unmatched_count", "ambiguous_count", "duplicate_matches", "match_rate", "bands",
		"unmatched_names", "failure_reason", "created_at"}).
		AddRow("rep-1", "fall-export.csv", "benchmark", "COMPLETED", 10, 0, 8, 2, 0, 0, 80.0,
			`{"exact":5,"high":2,"medium":1,"low":0}`, `["Pat Doe"]`, "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM match_reports WHERE id = $1")).
		WithArgs("rep-1").
		WillReturnRows(rows)

	fetched, err := repo.FindByID(context.Background(), "rep-1")
	require.NoError(t, err)
	require.Equal(t, "rep-1", fetched.ID)
	require.Equal(t, 5, fetched.Bands.Exact)
	require.Equal(t, models.StringList{"Pat Doe"}, fetched.UnmatchedNames)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateMissingReport(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE match_reports SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.MatchingReport{ID: "missing"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "dataset_label", "source_type", "status", "total_rows", "total_enrolled",
		"matched_count", "unmatched_count", "ambiguous_count", "duplicate_matches", "match_rate", "bands",
		"unmatched_names", "failure_reason", "created_at"}).
		AddRow("rep-1", "spring.csv", "grades", "COMPLETED", 4, 4, 4, 0, 0, 0, 100.0,
			`{"exact":4,"high":0,"medium":0,"low":0}`, `[]`, "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM match_reports WHERE 1=1 AND status = $1")).
		WithArgs(models.ReportStatusCompleted).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM match_reports")).
		WithArgs(models.ReportStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	reports, total, err := repo.List(context.Background(), models.ReportFilter{Status: models.ReportStatusCompleted})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
