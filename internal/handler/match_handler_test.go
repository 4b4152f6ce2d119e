package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-match-api/internal/dto"
	"github.com/noah-isme/sis-match-api/internal/models"
	appErrors "github.com/noah-isme/sis-match-api/pkg/errors"
)

type matchServiceMock struct {
	runResp     *dto.MatchRunResponse
	runErr      error
	queuedResp  *dto.MatchRunQueuedResponse
	queuedErr   error
	enqueued    bool
	ranSync     bool
}

func (m *matchServiceMock) Run(ctx context.Context, req dto.MatchRunRequest) (*dto.MatchRunResponse, error) {
	m.ranSync = true
	return m.runResp, m.runErr
}

func (m *matchServiceMock) Enqueue(ctx context.Context, req dto.MatchRunRequest) (*dto.MatchRunQueuedResponse, error) {
	m.enqueued = true
	return m.queuedResp, m.queuedErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func matchRunBody(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(dto.MatchRunRequest{
		DatasetLabel: "fall.csv",
		Rows:         []models.CandidateRow{{StudentID: "1001"}},
	})
	require.NoError(t, err)
	return payload
}

func TestMatchHandlerRunSync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &matchServiceMock{
		runResp: &dto.MatchRunResponse{Report: models.MatchingReport{ID: "rep-1", Status: models.ReportStatusCompleted}},
	}
	handler := NewMatchHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/match/runs", matchRunBody(t))
	handler.Run(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, mockSvc.ranSync)
	require.False(t, mockSvc.enqueued)
}

func TestMatchHandlerRunAsync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &matchServiceMock{
		queuedResp: &dto.MatchRunQueuedResponse{ReportID: "rep-1", Status: models.ReportStatusRunning},
	}
	handler := NewMatchHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/match/runs?async=true", matchRunBody(t))
	handler.Run(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.True(t, mockSvc.enqueued)
	require.False(t, mockSvc.ranSync)
}

func TestMatchHandlerRunRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMatchHandler(&matchServiceMock{})

	c, w := newGinContext(http.MethodPost, "/match/runs", []byte("{not json"))
	handler.Run(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchHandlerRunServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &matchServiceMock{runErr: appErrors.ErrValidation}
	handler := NewMatchHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/match/runs", matchRunBody(t))
	handler.Run(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
