// Package handler 提供 HTTP 请求处理器
package handler

import (
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/quoteflow"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/internal/interfaces/http/middleware"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PublicQuoteHandler 公开报价处理器
// 承接嵌入式挂件的匿名请求，所有操作均在租户凭证约束下执行
type PublicQuoteHandler struct {
	guard     *guard.Guard
	assembler *quoteflow.Assembler
	quoteRepo repository.QuoteRepository
}

// NewPublicQuoteHandler 创建公开报价处理器
func NewPublicQuoteHandler(g *guard.Guard, assembler *quoteflow.Assembler, quoteRepo repository.QuoteRepository) *PublicQuoteHandler {
	return &PublicQuoteHandler{
		guard:     g,
		assembler: assembler,
		quoteRepo: quoteRepo,
	}
}

// Submit 匿名提交报价
// 限流在组装器内部判定，提交路径不挂限流中间件避免重复计数
func (h *PublicQuoteHandler) Submit(c *gin.Context) {
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

	input := req.ToSubmitInput(quoteflow.SourcePublic, middleware.RequestOrigin(c))
	quote, err := h.assembler.Submit(ctx, tc, input)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Created(c, dto.ToQuoteDTO(quote))
}

// GetByNumber 按报价编号查询
func (h *PublicQuoteHandler) GetByNumber(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	number := c.Param("number")
	quote, err := h.quoteRepo.GetByNumber(ctx, tc.TenantID(), number)
	if err != nil {
		logger.Error(ctx, "failed to query quote", err, "quote_number", number)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query quote"))
		return
	}
	if quote == nil {
		respondError(c, errors.ErrQuoteNotFound)
		return
	}

	dto.Success(c, dto.ToQuoteDTO(quote))
}

// WidgetConfig 挂件配置查询
// Slug 来自路径而非请求头，供挂件初始化时直接拉取
func (h *PublicQuoteHandler) WidgetConfig(c *gin.Context) {
	ctx := c.Request.Context()

	tc, err := h.guard.ResolvePublic(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToWidgetConfigResponse(tc.Record()))
}
