// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"movecrm-api/internal/application/directory"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
)

// Invalidator 租户目录缓存失效接口
type Invalidator interface {
	Invalidate(ctx context.Context, slug string) error
}

// 编译期断言目录服务实现缓存失效接口
var _ Invalidator = (*directory.Directory)(nil)

// CatalogHandler 物品目录处理器
// 目录属于租户快照的一部分，写操作后让目录缓存失效
type CatalogHandler struct {
	catalogRepo repository.CatalogRepository
	invalidator Invalidator
}

// NewCatalogHandler 创建物品目录处理器
func NewCatalogHandler(catalogRepo repository.CatalogRepository, invalidator Invalidator) *CatalogHandler {
	return &CatalogHandler{
		catalogRepo: catalogRepo,
		invalidator: invalidator,
	}
}

// List 分页查询目录条目
func (h *CatalogHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	page := dto.BindPage(c)
	result, err := h.catalogRepo.List(ctx, tc.TenantID(), repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list catalog entries", err)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list catalog entries"))
		return
	}

	dto.SuccessWithPage(c, result.Items,
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Get 按 ID 查询目录条目
func (h *CatalogHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	entry, err := h.catalogRepo.GetByID(ctx, tc.TenantID(), c.Param("cid"))
	if err != nil {
		logger.Error(ctx, "failed to query catalog entry", err, "entry_id", c.Param("cid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query catalog entry"))
		return
	}
	if entry == nil {
		respondError(c, errors.ErrCatalogEntryNotFound)
		return
	}

	dto.Success(c, entry)
}

// Create 创建目录条目
func (h *CatalogHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.CreateCatalogEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	baseVolume, err := parsePositiveDecimal(req.BaseVolume)
	if err != nil {
		dto.BadRequest(c, "invalid base_volume: "+err.Error())
		return
	}
	laborMultiplier, err := parsePositiveDecimal(req.LaborMultiplier)
	if err != nil {
		dto.BadRequest(c, "invalid labor_multiplier: "+err.Error())
		return
	}

	entry := entity.NewItemCatalogEntry(tc.TenantID(), req.Name, baseVolume, laborMultiplier)
	entry.Aliases = req.Aliases
	entry.Category = req.Category

	if err := h.catalogRepo.Create(ctx, entry); err != nil {
		logger.Error(ctx, "failed to create catalog entry", err, "name", req.Name)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to create catalog entry"))
		return
	}

	h.invalidate(ctx, tc.Slug())
	dto.Created(c, entry)
}

// Update 更新目录条目
func (h *CatalogHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.UpdateCatalogEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.catalogRepo.GetByID(ctx, tc.TenantID(), c.Param("cid"))
	if err != nil {
		logger.Error(ctx, "failed to query catalog entry", err, "entry_id", c.Param("cid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query catalog entry"))
		return
	}
	if entry == nil {
		respondError(c, errors.ErrCatalogEntryNotFound)
		return
	}

	if req.Name != nil {
		entry.Name = *req.Name
	}
	if req.Aliases != nil {
		entry.Aliases = *req.Aliases
	}
	if req.Category != nil {
		entry.Category = *req.Category
	}
	if req.BaseVolume != nil {
		baseVolume, err := parsePositiveDecimal(*req.BaseVolume)
		if err != nil {
			dto.BadRequest(c, "invalid base_volume: "+err.Error())
			return
		}
		entry.BaseVolume = baseVolume
	}
	if req.LaborMultiplier != nil {
		laborMultiplier, err := parsePositiveDecimal(*req.LaborMultiplier)
		if err != nil {
			dto.BadRequest(c, "invalid labor_multiplier: "+err.Error())
			return
		}
		entry.LaborMultiplier = laborMultiplier
	}
	if req.IsActive != nil {
		entry.IsActive = *req.IsActive
	}

	if err := h.catalogRepo.Update(ctx, entry); err != nil {
		logger.Error(ctx, "failed to update catalog entry", err, "entry_id", entry.ID)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to update catalog entry"))
		return
	}

	h.invalidate(ctx, tc.Slug())
	dto.Success(c, entry)
}

// Delete 停用目录条目
func (h *CatalogHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	if err := h.catalogRepo.Delete(ctx, tc.TenantID(), c.Param("cid")); err != nil {
		logger.Error(ctx, "failed to delete catalog entry", err, "entry_id", c.Param("cid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to delete catalog entry"))
		return
	}

	h.invalidate(ctx, tc.Slug())
	dto.NoContent(c)
}

// invalidate 让租户目录缓存失效，失败只记录日志
// 缓存会在 TTL 到期后自然刷新
func (h *CatalogHandler) invalidate(ctx context.Context, slug string) {
	if err := h.invalidator.Invalidate(ctx, slug); err != nil {
		logger.Warn(ctx, "failed to invalidate tenant snapshot", "error", err.Error(), "slug", slug)
	}
}

// parsePositiveDecimal 解析必须为正数的十进制字符串
func parsePositiveDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() <= 0 {
		return decimal.Zero, errors.New(errors.CodeInvalidParam, "must be positive")
	}
	return d, nil
}
