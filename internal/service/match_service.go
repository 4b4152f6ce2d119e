package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/matching"
	"github.com/noah-isme/sis-match-api/internal/models"
	"github.com/noah-isme/sis-match-api/pkg/config"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
	"github.com/noah-isme/sis-match-api/pkg/jobs"
)

type rosterSnapshotter interface {
	Snapshot(ctx context.Context) ([]models.EnrolledStudent, error)
}

type matchReportStore interface {
	Create(ctx context.Context, report *models.MatchingReport) error
	Update(ctx context.Context, report *models.MatchingReport) error
	FindByID(ctx context.Context, id string) (*models.MatchingReport, error)
}

type matchedRecordStore interface {
	CreateBatch(ctx context.Context, records []models.MatchedRecord) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

const matchRunJobType = "match-run"

// MatchService orchestrates batch match runs: snapshot the roster, hand the
// rows to the engine, persist the linked rows and the report.
type MatchService struct {
	roster    rosterSnapshotter
	reports   matchReportStore
	records   matchedRecordStore
	queue     jobDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.MatchingConfig
}

// NewMatchService constructs a MatchService.
func NewMatchService(roster rosterSnapshotter, reports matchReportStore, records matchedRecordStore, queue jobDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg config.MatchingConfig) *MatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MatchService{
		roster:    roster,
		reports:   reports,
		records:   records,
		queue:     queue,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes a match run synchronously and returns the full outcome.
func (s *MatchService) Run(ctx context.Context, req dto.MatchRunRequest) (*dto.MatchRunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid match run payload")
	}

	report := s.newReport(req, models.ReportStatusCompleted)
	rows, err := s.execute(ctx, req, report)
	if err != nil {
		return nil, err
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report")
	}
	if err := s.persistMatchedRows(ctx, report.ID, rows); err != nil {
		return nil, err
	}

	return &dto.MatchRunResponse{Report: *report, Rows: rows}, nil
}

// Enqueue registers a pending report and queues the run for the workers.
func (s *MatchService) Enqueue(ctx context.Context, req dto.MatchRunRequest) (*dto.MatchRunQueuedResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid match run payload")
	}

	report := s.newReport(req, models.ReportStatusRunning)
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: report.ID, Type: matchRunJobType, Payload: req}); err != nil {
		report.Status = models.ReportStatusFailed
		report.FailureReason = "failed to enqueue match run"
		if updateErr := s.reports.Update(ctx, report); updateErr != nil {
			s.logger.Warn("failed to mark report failed", zap.String("report_id", report.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue match run")
	}

	return &dto.MatchRunQueuedResponse{ReportID: report.ID, Status: report.Status}, nil
}

// HandleJob processes one queued match run. Wired as the jobs.Queue handler.
func (s *MatchService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.MatchRunRequest)
	if !ok {
		s.logger.Error("unexpected job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	report, err := s.reports.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}

	rows, err := s.execute(ctx, req, report)
	if err != nil {
		report.Status = models.ReportStatusFailed
		report.FailureReason = appErrors.FromError(err).Message
		if updateErr := s.reports.Update(ctx, report); updateErr != nil {
			s.logger.Warn("failed to mark report failed", zap.String("report_id", report.ID), zap.Error(updateErr))
		}
		return err
	}

	report.Status = models.ReportStatusCompleted
	report.FailureReason = ""
	if err := s.reports.Update(ctx, report); err != nil {
		return err
	}
	return s.persistMatchedRows(ctx, report.ID, rows)
}

// execute runs the engine and folds the tallies into report in place.
func (s *MatchService) execute(ctx context.Context, req dto.MatchRunRequest, report *models.MatchingReport) ([]models.MatchedRow, error) {
	roster, err := s.roster.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome, err := matching.RunBatch(ctx, roster, req.Rows, s.params(), s.cfg.Workers)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "match run failed")
	}
	duration := time.Since(start)

	report.TotalRows = outcome.Report.TotalRows
	report.TotalEnrolled = outcome.Report.TotalEnrolled
	report.MatchedCount = outcome.Report.MatchedCount
	report.UnmatchedCount = outcome.Report.UnmatchedCount
	report.AmbiguousCount = outcome.Report.AmbiguousCount
	report.DuplicateMatches = outcome.Report.DuplicateMatches
	report.MatchRate = outcome.Report.MatchRate
	report.Bands = outcome.Report.Bands
	report.UnmatchedNames = outcome.Report.UnmatchedNames

	s.metrics.ObserveMatchRun(duration, *report)
	s.logger.Info("match run completed",
		zap.String("report_id", report.ID),
		zap.String("dataset", report.DatasetLabel),
		zap.Int("rows", report.TotalRows),
		zap.Int("matched", report.MatchedCount),
		zap.Float64("match_rate", report.MatchRate),
		zap.Duration("duration", duration),
	)

	return outcome.Rows, nil
}

func (s *MatchService) persistMatchedRows(ctx context.Context, reportID string, rows []models.MatchedRow) error {
	records := make([]models.MatchedRecord, 0, len(rows))
	for _, row := range rows {
		if !row.Result.Matched {
			continue
		}
		records = append(records, models.MatchedRecord{
			ReportID:   reportID,
			StudentID:  row.Result.MatchedStudentID,
			MatchedBy:  row.Result.MatchedBy,
			Confidence: row.Result.Confidence,
			Band:       row.Result.Band,
			Payload:    rowPayload(row.Row),
		})
	}
	if err := s.records.CreateBatch(ctx, records); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist matched rows")
	}
	return nil
}

func (s *MatchService) newReport(req dto.MatchRunRequest, status models.ReportStatus) *models.MatchingReport {
	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = "generic"
	}
	return &models.MatchingReport{
		ID:           uuid.NewString(),
		DatasetLabel: req.DatasetLabel,
		SourceType:   sourceType,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
}

func (s *MatchService) params() matching.Params {
	return matching.Params{
		FuzzyThreshold:         s.cfg.FuzzyThreshold,
		IDConfidence:           s.cfg.IDMatchConfidence,
		NameGradeConfidence:    s.cfg.NameGradeConfidence,
		NameOnlyConfidence:     s.cfg.NameOnlyConfidence,
		GradeBoost:             s.cfg.GradeBoost,
		TeacherBoost:           s.cfg.TeacherBoost,
		GradeMismatchPenalty:   s.cfg.GradeMismatchPenalty,
		TeacherMismatchPenalty: s.cfg.TeacherMismatchPenalty,
		MaxAlternatives:        s.cfg.MaxAlternatives,
	}
}

// rowPayload keeps the identifying fields plus the adapter passthrough so an
// export can show what the source file actually said.
func rowPayload(row models.CandidateRow) models.RawPayload {
	payload := make(models.RawPayload, len(row.Raw)+6)
	for k, v := range row.Raw {
		payload[k] = v
	}
	if row.StudentID != "" {
		payload["student_id"] = row.StudentID
	}
	if row.FirstName != "" {
		payload["first_name"] = row.FirstName
	}
	if row.LastName != "" {
		payload["last_name"] = row.LastName
	}
	if row.FullName != "" {
		payload["full_name"] = row.FullName
	}
	if row.Grade != "" {
		payload["grade"] = row.Grade
	}
	if row.Teacher != "" {
		payload["teacher"] = row.Teacher
	}
	return payload
}
