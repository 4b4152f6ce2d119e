package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-match-api/internal/dto"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
	"github.com/noah-isme/sis-match-api/pkg/response"
)

type matchRunner interface {
	Run(ctx context.Context, req dto.MatchRunRequest) (*dto.MatchRunResponse, error)
	Enqueue(ctx context.Context, req dto.MatchRunRequest) (*dto.MatchRunQueuedResponse, error)
}

// MatchHandler exposes match run endpoints.
type MatchHandler struct {
	service matchRunner
}

// NewMatchHandler constructs a match handler.
func NewMatchHandler(svc matchRunner) *MatchHandler {
	return &MatchHandler{service: svc}
}

// Run godoc
// @Summary Run a batch match
// @Description Links the posted candidate rows against the current roster. With async=true the run is queued and a pending report id returned.
// @Tags Matching
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param async query bool false "Queue the run instead of waiting"
// @Param payload body dto.MatchRunRequest true "Match run payload"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /match/runs [post]
func (h *MatchHandler) Run(c *gin.Context) {
	var req dto.MatchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid match run payload"))
		return
	}

	if c.Query("async") == "true" {
		res, err := h.service.Enqueue(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, res)
		return
	}

	res, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
