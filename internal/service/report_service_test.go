package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-match-api/internal/models"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
	"github.com/noah-isme/sis-match-api/pkg/storage"
)

type mockReportReader struct {
	reports map[string]*models.MatchingReport
}

func (m *mockReportReader) FindByID(ctx context.Context, id string) (*models.MatchingReport, error) {
	report, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return report, nil
}

func (m *mockReportReader) List(ctx context.Context, filter models.ReportFilter) ([]models.MatchingReport, int, error) {
	out := make([]models.MatchingReport, 0, len(m.reports))
	for _, report := range m.reports {
		out = append(out, *report)
	}
	return out, len(out), nil
}

type mockRecordReader struct {
	records []models.MatchedRecord
}

func (m *mockRecordReader) ListByReport(ctx context.Context, reportID string) ([]models.MatchedRecord, error) {
	return m.records, nil
}

func newReportService(t *testing.T, reports *mockReportReader, records *mockRecordReader) *ReportService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewReportService(reports, records, files, signer, zap.NewNop(), ReportServiceConfig{APIPrefix: "/api/v1"})
}

func completedReport(id string) *models.MatchingReport {
	return &models.MatchingReport{
		ID:             id,
		DatasetLabel:   "fall.csv",
		SourceType:     "benchmark",
		Status:         models.ReportStatusCompleted,
		TotalRows:      3,
		MatchedCount:   2,
		UnmatchedCount: 1,
		MatchRate:      66.67,
		UnmatchedNames: models.StringList{"Pat Doe"},
		CreatedAt:      time.Now().UTC(),
	}
}

func TestReportServiceExportCSV(t *testing.T) {
	id := uuid.NewString()
	reports := &mockReportReader{reports: map[string]*models.MatchingReport{id: completedReport(id)}}
	records := &mockRecordReader{records: []models.MatchedRecord{
		{ReportID: id, StudentID: "S1", MatchedBy: models.MatchByID, Confidence: 95, Band: models.BandExact, Payload: models.RawPayload{"full_name": "Ana Diaz"}},
		{ReportID: id, StudentID: "S2", MatchedBy: models.MatchByFuzzy, Confidence: 80, Band: models.BandLow, Payload: models.RawPayload{"full_name": "Jon Smyth"}},
	}}
	svc := newReportService(t, reports, records)

	res, err := svc.Export(context.Background(), id, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, res.Format)
	assert.True(t, strings.HasPrefix(res.URL, "/api/v1/match/export/"))
	assert.NotEmpty(t, res.Token)

	download, err := svc.ResolveDownload(context.Background(), res.Token)
	require.NoError(t, err)
	defer download.File.Close()

	data, err := os.ReadFile(download.File.Name())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Ana Diaz")
	assert.Contains(t, content, "Jon Smyth")
	// Unmatched names ride along for manual review.
	assert.Contains(t, content, "Pat Doe")
	assert.Equal(t, filepath.Base(download.File.Name()), download.Filename)
}

func TestReportServiceExportRejectsRunningReport(t *testing.T) {
	id := uuid.NewString()
	report := completedReport(id)
	report.Status = models.ReportStatusRunning
	svc := newReportService(t, &mockReportReader{reports: map[string]*models.MatchingReport{id: report}}, &mockRecordReader{})

	_, err := svc.Export(context.Background(), id, models.ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReportServiceExportUnknownReport(t *testing.T) {
	svc := newReportService(t, &mockReportReader{reports: map[string]*models.MatchingReport{}}, &mockRecordReader{})

	_, err := svc.Export(context.Background(), uuid.NewString(), models.ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceGetRejectsMalformedID(t *testing.T) {
	svc := newReportService(t, &mockReportReader{reports: map[string]*models.MatchingReport{}}, &mockRecordReader{})

	_, err := svc.Get(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceResolveDownloadRejectsTamperedToken(t *testing.T) {
	id := uuid.NewString()
	svc := newReportService(t, &mockReportReader{reports: map[string]*models.MatchingReport{id: completedReport(id)}}, &mockRecordReader{})

	res, err := svc.Export(context.Background(), id, models.ExportFormatCSV)
	require.NoError(t, err)

	_, err = svc.ResolveDownload(context.Background(), res.Token+"x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
