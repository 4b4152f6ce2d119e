package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/models"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
	"github.com/noah-isme/sis-match-api/pkg/export"
	"github.com/noah-isme/sis-match-api/pkg/storage"
)

type reportStore interface {
	FindByID(ctx context.Context, id string) (*models.MatchingReport, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.MatchingReport, int, error)
}

type matchedRecordReader interface {
	ListByReport(ctx context.Context, reportID string) ([]models.MatchedRecord, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Table, title string) ([]byte, error)
}

// ReportServiceConfig tunes export rendering and cleanup.
type ReportServiceConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// ReportService serves match reports and renders their exports.
type ReportService struct {
	reports reportStore
	records matchedRecordReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ReportServiceConfig
}

// NewReportService constructs a ReportService.
func NewReportService(reports reportStore, records matchedRecordReader, files fileStorage, signer *storage.SignedURLSigner, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		reports: reports,
		records: records,
		storage: files,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// List returns reports matching the filter, newest first.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) (*dto.ReportListResponse, error) {
	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	return &dto.ReportListResponse{
		Reports:    reports,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// Get returns one report.
func (s *ReportService) Get(ctx context.Context, id string) (*models.MatchingReport, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid report id")
	}
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

// Export renders a report to the requested format and returns a signed URL.
func (s *ReportService) Export(ctx context.Context, id string, format models.ExportFormat) (*dto.ExportResponse, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report is not completed")
	}

	records, err := s.records.ListByReport(ctx, report.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matched rows")
	}

	table, title := buildReportTable(report, records)

	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(table)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(table, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("match_report_%s_%s.%s", report.ID, time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(report.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &dto.ExportResponse{
		URL:       fmt.Sprintf("%s/match/export/%s", prefix, token),
		Token:     token,
		Format:    format,
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveDownload validates a signed token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	reportID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if _, err := s.Get(ctx, reportID); err != nil {
		return nil, err
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

// buildReportTable renders the run as one table: matched rows first, then
// the unmatched names so an operator can review them from the same file.
func buildReportTable(report *models.MatchingReport, records []models.MatchedRecord) (export.Table, string) {
	headers := []string{"Source Row", "Student ID", "Matched By", "Confidence", "Band"}
	rows := make([]map[string]string, 0, len(records)+len(report.UnmatchedNames))

	for _, rec := range records {
		rows = append(rows, map[string]string{
			"Source Row": payloadLabel(rec.Payload),
			"Student ID": rec.StudentID,
			"Matched By": string(rec.MatchedBy),
			"Confidence": fmt.Sprintf("%d", rec.Confidence),
			"Band":       string(rec.Band),
		})
	}
	for _, name := range report.UnmatchedNames {
		rows = append(rows, map[string]string{
			"Source Row": name,
			"Student ID": "",
			"Matched By": string(models.MatchByNone),
			"Confidence": "0",
			"Band":       string(models.BandUncertain),
		})
	}

	title := fmt.Sprintf("Match Report %s (%.1f%% matched)", report.DatasetLabel, report.MatchRate)
	return export.Table{Headers: headers, Rows: rows}, title
}

func payloadLabel(payload models.RawPayload) string {
	if v := payload["full_name"]; v != "" {
		return v
	}
	first, last := payload["first_name"], payload["last_name"]
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case payload["student_id"] != "":
		return "id:" + payload["student_id"]
	default:
		return "(unlabeled row)"
	}
}
