package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-match-api/internal/models"
)

// RosterRepository manages persistence for the enrolled-student roster.
// The roster is only ever replaced wholesale; there are no per-student
// mutations.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// List returns roster students matching the provided filters.
func (r *RosterRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.EnrolledStudent, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d OR s.student_number LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("s.grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"last_name":      "s.last_name",
		"student_number": "s.student_number",
		"grade":          "s.grade",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.last_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.student_number, s.first_name, s.last_name, s.grade, s.teacher, s.created_at
        %s ORDER BY %s %s, s.id ASC LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.EnrolledStudent
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	return students, total, nil
}

// ListAll returns the full roster snapshot, ordered by id so index builds
// are reproducible.
func (r *RosterRepository) ListAll(ctx context.Context) ([]models.EnrolledStudent, error) {
	const query = `SELECT id, student_number, first_name, last_name, grade, teacher, created_at FROM students ORDER BY id ASC`
	var students []models.EnrolledStudent
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("load roster snapshot: %w", err)
	}
	return students, nil
}

// Count returns the enrolled-student count.
func (r *RosterRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

// ReplaceAll swaps the whole roster in one transaction. Matched rows keyed
// against the outgoing roster are invalidated in the same transaction, so
// dependent data never outlives the roster it was linked against.
func (r *RosterRepository) ReplaceAll(ctx context.Context, students []models.EnrolledStudent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM matched_rows"); err != nil {
		return fmt.Errorf("invalidate matched rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM students"); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}

	const insert = `INSERT INTO students (id, student_number, first_name, last_name, grade, teacher, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	now := time.Now().UTC()
	for i := range students {
		if students[i].ID == "" {
			students[i].ID = uuid.NewString()
		}
		if students[i].CreatedAt.IsZero() {
			students[i].CreatedAt = now
		}
		s := students[i]
		if _, err := tx.ExecContext(ctx, insert, s.ID, s.StudentNumber, s.FirstName, s.LastName, s.Grade, s.Teacher, s.CreatedAt); err != nil {
			return fmt.Errorf("insert student %s: %w", s.StudentNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster replace: %w", err)
	}
	return nil
}
