package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/models"
	"github.com/noah-isme/sis-match-api/internal/service"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
	"github.com/noah-isme/sis-match-api/pkg/response"
)

// RosterHandler exposes roster endpoints.
type RosterHandler struct {
	service *service.RosterService
}

// NewRosterHandler constructs a roster handler.
func NewRosterHandler(svc *service.RosterService) *RosterHandler {
	return &RosterHandler{service: svc}
}

// List godoc
// @Summary List enrolled students
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name or student number"
// @Param grade query string false "Filter by grade"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *RosterHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    c.Query("search"),
		Grade:     c.Query("grade"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res.Students, &res.Pagination)
}

// Import godoc
// @Summary Replace the enrolled-student roster
// @Description Installs a new roster wholesale. Matched rows linked against the outgoing roster are invalidated.
// @Tags Roster
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RosterImportRequest true "Roster payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /roster/import [post]
func (h *RosterHandler) Import(c *gin.Context) {
	var req dto.RosterImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}

	res, err := h.service.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
