package server

import (
	"context"
	"net/http"

	stderrors "errors"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/service/pipeline"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

// triggerRequest: 실행 트리거 요청 바디
// force가 true면 이전 실행에서 캐싱된 가격 스냅샷을 재사용하지 않는다.
type triggerRequest struct {
	Mode   string `json:"mode"`
	AppIDs []int  `json:"appids"`
	Force  bool   `json:"force"`
}

// TriggerIngestion: 파이프라인 실행을 시작한다.
// 이미 실행 중이면 409를 반환한다. (실행 직렬화)
func (h *APIHandler) TriggerIngestion(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}
	if req.Mode == "" {
		req.Mode = domain.RunModeFull.String()
	}

	jobID, err := h.orchestrator.Trigger(c.Request.Context(), pipeline.RunRequest{
		Mode:   domain.RunMode(req.Mode),
		AppIDs: req.AppIDs,
		Force:  req.Force,
	})
	if err != nil {
		var busyErr *errors.RunBusyError
		if stderrors.As(err, &busyErr) {
			c.JSON(http.StatusConflict, gin.H{
				"status":        "error",
				"message":       "a pipeline run is already in progress",
				"active_job_id": busyErr.ActiveJobID,
			})
			return
		}
		var validationErr *errors.ValidationError
		if stderrors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": validationErr.Error()})
			return
		}
		h.logger.Error("Failed to trigger run", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to trigger run"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "accepted",
		"job_id": jobID,
		"mode":   req.Mode,
	})
}

// CancelIngestion: 진행 중인 실행을 취소한다.
func (h *APIHandler) CancelIngestion(c *gin.Context) {
	if !h.orchestrator.Cancel() {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "no active run"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// GetJob: 잡 ID로 실행 리포트를 조회한다.
func (h *APIHandler) GetJob(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.APIRequest)
	defer cancel()

	report, err := h.jobCache.GetJobReport(ctx, c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get job report", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load job report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "job not found"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetRecentJobs: 최근 실행된 잡 리포트 목록을 반환한다. (최신순)
func (h *APIHandler) GetRecentJobs(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.APIRequest)
	defer cancel()

	reports, err := h.jobCache.GetRecentJobs(ctx)
	if err != nil {
		h.logger.Error("Failed to list recent jobs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(reports), "jobs": reports})
}

// GetIngestionStatus: 현재 실행 상태와 스토어 규모를 반환한다.
func (h *APIHandler) GetIngestionStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.APIRequest)
	defer cancel()

	games, err := h.repo.CountGames(ctx)
	if err != nil {
		h.logger.Warn("Failed to count games", slog.Any("error", err))
	}
	factCount, err := h.repo.CountFacts(ctx)
	if err != nil {
		h.logger.Warn("Failed to count facts", slog.Any("error", err))
	}

	activeJobID := h.orchestrator.ActiveJobID()
	c.JSON(http.StatusOK, gin.H{
		"running":       activeJobID != "",
		"active_job_id": activeJobID,
		"games":         games,
		"facts":         factCount,
	})
}
