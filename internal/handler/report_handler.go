package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/models"
	"github.com/noah-isme/sis-match-api/internal/service"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
	"github.com/noah-isme/sis-match-api/pkg/response"
)

type reportProvider interface {
	List(ctx context.Context, filter models.ReportFilter) (*dto.ReportListResponse, error)
	Get(ctx context.Context, id string) (*models.MatchingReport, error)
	Export(ctx context.Context, id string, format models.ExportFormat) (*dto.ExportResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes match report endpoints.
type ReportHandler struct {
	service reportProvider
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc reportProvider) *ReportHandler {
	return &ReportHandler{service: svc}
}

// List godoc
// @Summary List match reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param sourceType query string false "Filter by source type"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /match/reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	filter := models.ReportFilter{
		SourceType: c.Query("sourceType"),
		Status:     models.ReportStatus(c.Query("status")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "pageSize", 20),
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res.Reports, &res.Pagination)
}

// Get godoc
// @Summary Get one match report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /match/reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export a match report
// @Description Renders the report to CSV or PDF and returns a signed download URL.
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /match/reports/{id}/export [post]
func (h *ReportHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	res, err := h.service.Export(c.Request.Context(), c.Param("id"), req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Download godoc
// @Summary Download a rendered export
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /match/export/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.File(download.File.Name())
}
