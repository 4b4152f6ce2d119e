package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/models"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
)

type mockRosterStore struct {
	students []models.EnrolledStudent
	replaced []models.EnrolledStudent
}

func (m *mockRosterStore) List(ctx context.Context, filter models.StudentFilter) ([]models.EnrolledStudent, int, error) {
	return m.students, len(m.students), nil
}

func (m *mockRosterStore) ListAll(ctx context.Context) ([]models.EnrolledStudent, error) {
	return m.students, nil
}

func (m *mockRosterStore) Count(ctx context.Context) (int, error) {
	return len(m.students), nil
}

func (m *mockRosterStore) ReplaceAll(ctx context.Context, students []models.EnrolledStudent) error {
	m.replaced = students
	m.students = students
	return nil
}

func newRosterService(store *mockRosterStore) *RosterService {
	return NewRosterService(store, nil, validator.New(), zap.NewNop())
}

func TestRosterServiceImportNormalizesStudentNumbers(t *testing.T) {
	store := &mockRosterStore{}
	svc := newRosterService(store)

	res, err := svc.Import(context.Background(), dto.RosterImportRequest{
		Students: []dto.RosterStudent{
			{StudentNumber: `="001001"`, FirstName: "Ana", LastName: "Diaz", Grade: "3"},
			{StudentNumber: "1002", FirstName: "Sam", LastName: "Lee", Grade: "4"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	require.Len(t, store.replaced, 2)
	// Formula wrapper and leading zeros are stripped before storage.
	assert.Equal(t, "1001", store.replaced[0].StudentNumber)
}

func TestRosterServiceImportRejectsEmptyRoster(t *testing.T) {
	svc := newRosterService(&mockRosterStore{})

	_, err := svc.Import(context.Background(), dto.RosterImportRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceImportRejectsDuplicateNumbers(t *testing.T) {
	svc := newRosterService(&mockRosterStore{})

	_, err := svc.Import(context.Background(), dto.RosterImportRequest{
		Students: []dto.RosterStudent{
			{StudentNumber: "1001", FirstName: "Ana", LastName: "Diaz", Grade: "3"},
			{StudentNumber: `="001001"`, FirstName: "Ana", LastName: "Diaz", Grade: "3"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRosterInvalid.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceListPaginates(t *testing.T) {
	store := &mockRosterStore{students: []models.EnrolledStudent{
		{ID: "S1", StudentNumber: "1001", FirstName: "Ana", LastName: "Diaz", Grade: "3"},
	}}
	svc := newRosterService(store)

	res, err := svc.List(context.Background(), models.StudentFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pagination.Page)
	assert.Equal(t, 10, res.Pagination.PageSize)
	assert.Equal(t, 1, res.Pagination.TotalCount)
	require.Len(t, res.Students, 1)
}
