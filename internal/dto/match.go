package dto

import (
	"time"

	"github.com/noah-isme/sis-match-api/internal/models"
)

// MatchRunRequest captures POST /match/runs payload.
type MatchRunRequest struct {
	DatasetLabel string                `json:"dataset_label" validate:"required"`
	SourceType   string                `json:"source_type"`
	Rows         []models.CandidateRow `json:"rows" validate:"required,min=1"`
}

// MatchRunResponse returns the completed run with per-row outcomes.
type MatchRunResponse struct {
	Report models.MatchingReport `json:"report"`
	Rows   []models.MatchedRow   `json:"rows"`
}

// MatchRunQueuedResponse acknowledges an asynchronous run.
type MatchRunQueuedResponse struct {
	ReportID string              `json:"report_id"`
	Status   models.ReportStatus `json:"status"`
}

// ReportListResponse wraps a paginated report listing.
type ReportListResponse struct {
	Reports    []models.MatchingReport `json:"reports"`
	Pagination models.Pagination       `json:"pagination"`
}

// ExportRequest captures POST /match/reports/:id/export payload.
type ExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse returns the signed download location of a rendered export.
type ExportResponse struct {
	URL       string              `json:"url"`
	Token     string              `json:"token"`
	Format    models.ExportFormat `json:"format"`
	ExpiresAt time.Time           `json:"expires_at"`
}
