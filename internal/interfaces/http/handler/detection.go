// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"movecrm-api/internal/application/detectionflow"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
)

// DetectionHandler 检测任务处理器
// 任务入队后由检测 Worker 异步处理，查询接口反映任务当前状态
type DetectionHandler struct {
	pipeline *detectionflow.Pipeline
	jobRepo  repository.DetectionJobRepository
}

// NewDetectionHandler 创建检测任务处理器
func NewDetectionHandler(pipeline *detectionflow.Pipeline, jobRepo repository.DetectionJobRepository) *DetectionHandler {
	return &DetectionHandler{
		pipeline: pipeline,
		jobRepo:  jobRepo,
	}
}

// Enqueue 为报价创建检测任务
func (h *DetectionHandler) Enqueue(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.EnqueueDetectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	job, err := h.pipeline.Enqueue(ctx, tc, c.Param("qid"), req.MediaURLs, req.Prompt)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Accepted(c, job)
}

// Get 按 ID 查询检测任务
func (h *DetectionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(ctx, tc.TenantID(), c.Param("jid"))
	if err != nil {
		logger.Error(ctx, "failed to query detection job", err, "job_id", c.Param("jid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query detection job"))
		return
	}
	if job == nil {
		dto.NotFound(c, "detection job not found")
		return
	}

	dto.Success(c, job)
}

// ListByQuote 查询报价关联的检测任务
func (h *DetectionHandler) ListByQuote(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	jobs, err := h.jobRepo.ListByQuote(ctx, tc.TenantID(), c.Param("qid"))
	if err != nil {
		logger.Error(ctx, "failed to list detection jobs", err, "quote_id", c.Param("qid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list detection jobs"))
		return
	}

	dto.Success(c, jobs)
}
