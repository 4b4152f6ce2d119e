package dto

import "github.com/noah-isme/sis-match-api/internal/models"

// RosterStudent is one enrolled student in an import payload.
type RosterStudent struct {
	StudentNumber string `json:"student_number" validate:"required"`
	FirstName     string `json:"first_name" validate:"required"`
	LastName      string `json:"last_name" validate:"required"`
	Grade         string `json:"grade" validate:"required"`
	Teacher       string `json:"teacher"`
}

// RosterImportRequest captures POST /roster/import payload. The posted
// roster replaces the stored one wholesale.
type RosterImportRequest struct {
	Students []RosterStudent `json:"students" validate:"required,min=1,dive"`
}

// RosterImportResponse reports the outcome of a bulk replace.
type RosterImportResponse struct {
	Imported int `json:"imported"`
}

// StudentListResponse wraps a paginated roster listing.
type StudentListResponse struct {
	Students   []models.EnrolledStudent `json:"students"`
	Pagination models.Pagination        `json:"pagination"`
}
