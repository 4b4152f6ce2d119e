package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/models"
	"github.com/noah-isme/sis-match-api/pkg/config"
	"github.com/noah-isme/sis-match-api/pkg/jobs"
)

type mockRoster struct {
	students []models.EnrolledStudent
	err      error
}

func (m *mockRoster) Snapshot(ctx context.Context) ([]models.EnrolledStudent, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.students, nil
}

type mockReportStore struct {
	created  []*models.MatchingReport
	updated  []*models.MatchingReport
	byID     map[string]*models.MatchingReport
	createEr error
}

func (m *mockReportStore) Create(ctx context.Context, report *models.MatchingReport) error {
	if m.createEr != nil {
		return m.createEr
	}
	if m.byID == nil {
		m.byID = make(map[string]*models.MatchingReport)
	}
	copied := *report
	m.created = append(m.created, &copied)
	m.byID[report.ID] = &copied
	return nil
}

func (m *mockReportStore) Update(ctx context.Context, report *models.MatchingReport) error {
	copied := *report
	m.updated = append(m.updated, &copied)
	if m.byID != nil {
		m.byID[report.ID] = &copied
	}
	return nil
}

func (m *mockReportStore) FindByID(ctx context.Context, id string) (*models.MatchingReport, error) {
	if report, ok := m.byID[id]; ok {
		copied := *report
		return &copied, nil
	}
	return nil, errors.New("not found")
}

type mockRecordStore struct {
	batches [][]models.MatchedRecord
}

func (m *mockRecordStore) CreateBatch(ctx context.Context, records []models.MatchedRecord) error {
	m.batches = append(m.batches, records)
	return nil
}

type mockQueue struct {
	jobs []jobs.Job
	err  error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func matchTestRoster() []models.EnrolledStudent {
	return []models.EnrolledStudent{
		{ID: "S1", StudentNumber: "1001", FirstName: "Ana", LastName: "Diaz", Grade: "3"},
		{ID: "S2", StudentNumber: "1002", FirstName: "John", LastName: "Smith", Grade: "4"},
	}
}

func newMatchService(roster *mockRoster, reports *mockReportStore, records *mockRecordStore, queue *mockQueue) *MatchService {
	return NewMatchService(roster, reports, records, queue, nil, validator.New(), zap.NewNop(), config.MatchingConfig{Workers: 1})
}

func TestMatchServiceRunPersistsReportAndRows(t *testing.T) {
	reports := &mockReportStore{}
	records := &mockRecordStore{}
	svc := newMatchService(&mockRoster{students: matchTestRoster()}, reports, records, &mockQueue{})

	res, err := svc.Run(context.Background(), dto.MatchRunRequest{
		DatasetLabel: "fall.csv",
		SourceType:   "benchmark",
		Rows: []models.CandidateRow{
			{StudentID: "1001"},
			{FullName: "John Smith", Grade: "4"},
			{FullName: "Nobody Known"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusCompleted, res.Report.Status)
	assert.Equal(t, 3, res.Report.TotalRows)
	assert.Equal(t, 2, res.Report.MatchedCount)
	assert.Equal(t, 1, res.Report.UnmatchedCount)
	assert.Len(t, res.Rows, 3)

	require.Len(t, reports.created, 1)
	require.Len(t, records.batches, 1)
	// Only linked rows are stored.
	require.Len(t, records.batches[0], 2)
	assert.Equal(t, res.Report.ID, records.batches[0][0].ReportID)
	assert.Equal(t, "S1", records.batches[0][0].StudentID)
}

func TestMatchServiceRunRejectsEmptyRows(t *testing.T) {
	svc := newMatchService(&mockRoster{}, &mockReportStore{}, &mockRecordStore{}, &mockQueue{})

	_, err := svc.Run(context.Background(), dto.MatchRunRequest{DatasetLabel: "empty.csv"})
	require.Error(t, err)
}

func TestMatchServiceRunRosterLoadFailure(t *testing.T) {
	svc := newMatchService(&mockRoster{err: errors.New("db down")}, &mockReportStore{}, &mockRecordStore{}, &mockQueue{})

	_, err := svc.Run(context.Background(), dto.MatchRunRequest{
		DatasetLabel: "fall.csv",
		Rows:         []models.CandidateRow{{StudentID: "1001"}},
	})
	require.Error(t, err)
}

func TestMatchServiceEnqueueCreatesPendingReport(t *testing.T) {
	reports := &mockReportStore{}
	queue := &mockQueue{}
	svc := newMatchService(&mockRoster{students: matchTestRoster()}, reports, &mockRecordStore{}, queue)

	res, err := svc.Enqueue(context.Background(), dto.MatchRunRequest{
		DatasetLabel: "fall.csv",
		Rows:         []models.CandidateRow{{StudentID: "1001"}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusRunning, res.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, res.ReportID, queue.jobs[0].ID)
	assert.Equal(t, matchRunJobType, queue.jobs[0].Type)
}

func TestMatchServiceEnqueueFailureMarksReportFailed(t *testing.T) {
	reports := &mockReportStore{}
	svc := newMatchService(&mockRoster{students: matchTestRoster()}, reports, &mockRecordStore{}, &mockQueue{err: errors.New("queue closed")})

	_, err := svc.Enqueue(context.Background(), dto.MatchRunRequest{
		DatasetLabel: "fall.csv",
		Rows:         []models.CandidateRow{{StudentID: "1001"}},
	})
	require.Error(t, err)
	require.Len(t, reports.updated, 1)
	assert.Equal(t, models.ReportStatusFailed, reports.updated[0].Status)
}

func TestMatchServiceHandleJobCompletesReport(t *testing.T) {
	reports := &mockReportStore{}
	records := &mockRecordStore{}
	queue := &mockQueue{}
	svc := newMatchService(&mockRoster{students: matchTestRoster()}, reports, records, queue)

	req := dto.MatchRunRequest{
		DatasetLabel: "fall.csv",
		Rows:         []models.CandidateRow{{StudentID: "1001"}, {FullName: "Diaz, Ana"}},
	}
	queued, err := svc.Enqueue(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: queued.ReportID, Type: matchRunJobType, Payload: req}))

	final, err := reports.FindByID(context.Background(), queued.ReportID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, final.Status)
	assert.Equal(t, 2, final.MatchedCount)
	// Both rows resolved to the same student.
	assert.Equal(t, 1, final.DuplicateMatches)
	require.Len(t, records.batches, 1)
}

func TestMatchServiceHandleJobFailureRecordsReason(t *testing.T) {
	reports := &mockReportStore{}
	roster := &mockRoster{students: matchTestRoster()}
	svc := newMatchService(roster, reports, &mockRecordStore{}, &mockQueue{})

	req := dto.MatchRunRequest{
		DatasetLabel: "fall.csv",
		Rows:         []models.CandidateRow{{StudentID: "1001"}},
	}
	queued, err := svc.Enqueue(context.Background(), req)
	require.NoError(t, err)

	roster.err = errors.New("db down")
	require.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: queued.ReportID, Type: matchRunJobType, Payload: req}))

	final, err := reports.FindByID(context.Background(), queued.ReportID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, final.Status)
	assert.NotEmpty(t, final.FailureReason)
}
