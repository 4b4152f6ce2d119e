package models

import "time"

// EnrolledStudent is the canonical record every uploaded dataset row is
// linked against. The roster is only ever replaced in bulk; individual
// records are never mutated after import.
type EnrolledStudent struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Grade         string    `db:"grade" json:"grade"`
	Teacher       string    `db:"teacher" json:"teacher,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// FullName renders the display form used in reports and alternatives.
func (s EnrolledStudent) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter captures filtering criteria for listing roster students.
type StudentFilter struct {
	Search    string
	Grade     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
