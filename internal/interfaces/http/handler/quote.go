// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/quoteflow"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// QuoteHandler 员工侧报价处理器
type QuoteHandler struct {
	assembler *quoteflow.Assembler
	quoteRepo repository.QuoteRepository
}

// NewQuoteHandler 创建报价处理器
func NewQuoteHandler(assembler *quoteflow.Assembler, quoteRepo repository.QuoteRepository) *QuoteHandler {
	return &QuoteHandler{
		assembler: assembler,
		quoteRepo: quoteRepo,
	}
}

// List 分页查询报价
// 支持按状态过滤和按客户名/邮箱/编号模糊搜索
func (h *QuoteHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	page := dto.BindPage(c)
	filter := repository.QuoteFilter{
		Status: entity.QuoteStatus(c.Query("status")),
		Search: c.Query("search"),
	}

	result, err := h.quoteRepo.List(ctx, tc.TenantID(), filter, repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list quotes", err)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list quotes"))
		return
	}

	dto.SuccessWithPage(c, dto.ToQuoteDTOs(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Get 按 ID 查询报价
func (h *QuoteHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	quote, err := h.quoteRepo.GetByID(ctx, tc.TenantID(), c.Param("qid"))
	if err != nil {
		logger.Error(ctx, "failed to query quote", err, "quote_id", c.Param("qid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query quote"))
		return
	}
	if quote == nil {
		respondError(c, errors.ErrQuoteNotFound)
		return
	}

	dto.Success(c, dto.ToQuoteDTO(quote))
}

// Create 员工代客创建报价
func (h *QuoteHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.SubmitQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	input := req.ToSubmitInput(quoteflow.SourceStaff, "")
	quote, err := h.assembler.Submit(ctx, tc, input)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Created(c, dto.ToQuoteDTO(quote))
}

// Approve 批准报价
func (h *QuoteHandler) Approve(c *gin.Context) {
	h.transition(c, h.assembler.Approve)
}

// Reject 拒绝报价
func (h *QuoteHandler) Reject(c *gin.Context) {
	h.transition(c, h.assembler.Reject)
}

func (h *QuoteHandler) transition(c *gin.Context, fn func(ctx context.Context, tc *guard.TenantContext, quoteID string) (*entity.Quote, error)) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	quote, err := fn(ctx, tc, c.Param("qid"))
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToQuoteDTO(quote))
}

// AddItems 追加行项并重算金额
func (h *QuoteHandler) AddItems(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.AddQuoteItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	quote, err := h.assembler.AppendItems(ctx, tc, c.Param("qid"), dto.ToDetectedItems(req.Items))
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToQuoteDTO(quote))
}

// RemoveItem 删除行项并重算金额
func (h *QuoteHandler) RemoveItem(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	quote, err := h.assembler.RemoveItem(ctx, tc, c.Param("qid"), c.Param("itemid"))
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToQuoteDTO(quote))
}

// Recalculate 按当前目录与默认规则重算金额
func (h *QuoteHandler) Recalculate(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	quote, err := h.assembler.Recalculate(ctx, tc, c.Param("qid"))
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToQuoteDTO(quote))
}
