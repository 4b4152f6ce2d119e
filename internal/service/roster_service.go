package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/matching"
	"github.com/noah-isme/sis-match-api/internal/models"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
)

type rosterStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.EnrolledStudent, int, error)
	ListAll(ctx context.Context) ([]models.EnrolledStudent, error)
	Count(ctx context.Context) (int, error)
	ReplaceAll(ctx context.Context, students []models.EnrolledStudent) error
}

const rosterCachePattern = "roster:*"

// RosterService manages the enrolled-student roster. An import replaces the
// whole roster and invalidates everything keyed against the outgoing one:
// stored matched rows go in the same transaction, cached listings here.
type RosterService struct {
	repo      rosterStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(repo rosterStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RosterService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns a paginated roster view.
func (s *RosterService) List(ctx context.Context, filter models.StudentFilter) (*dto.StudentListResponse, error) {
	key := rosterCacheKey(filter)
	var cached dto.StudentListResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	resp := &dto.StudentListResponse{
		Students:   students,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}
	if err := s.cache.Set(ctx, key, resp, 0); err != nil {
		s.logger.Warn("failed to cache roster listing", zap.Error(err))
	}
	return resp, nil
}

// Snapshot loads the full roster for a match run.
func (s *RosterService) Snapshot(ctx context.Context) ([]models.EnrolledStudent, error) {
	students, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return students, nil
}

// Import validates and installs a replacement roster.
func (s *RosterService) Import(ctx context.Context, req dto.RosterImportRequest) (*dto.RosterImportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}

	students := make([]models.EnrolledStudent, 0, len(req.Students))
	seen := make(map[string]int, len(req.Students))
	for i, in := range req.Students {
		number := matching.NormalizeStudentNumber(in.StudentNumber)
		if number == "" {
			return nil, appErrors.Clone(appErrors.ErrRosterInvalid, fmt.Sprintf("student %d has an empty student number", i+1))
		}
		if prev, dup := seen[number]; dup {
			return nil, appErrors.Clone(appErrors.ErrRosterInvalid, fmt.Sprintf("students %d and %d share student number %s", prev+1, i+1, number))
		}
		seen[number] = i
		students = append(students, models.EnrolledStudent{
			StudentNumber: number,
			FirstName:     in.FirstName,
			LastName:      in.LastName,
			Grade:         in.Grade,
			Teacher:       in.Teacher,
		})
	}

	if err := s.repo.ReplaceAll(ctx, students); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace roster")
	}

	if err := s.cache.Invalidate(ctx, rosterCachePattern); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Error(err))
	}

	s.logger.Info("roster replaced", zap.Int("students", len(students)))
	return &dto.RosterImportResponse{Imported: len(students)}, nil
}

func rosterCacheKey(filter models.StudentFilter) string {
	return fmt.Sprintf("roster:list:%s:%s:%d:%d:%s:%s", filter.Search, filter.Grade, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}
