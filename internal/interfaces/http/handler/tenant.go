// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
)

// TenantHandler 租户自助管理处理器
// 只操作当前凭证对应的租户，不提供跨租户管理入口
type TenantHandler struct {
	tenantRepo  repository.TenantRepository
	invalidator Invalidator
}

// NewTenantHandler 创建租户处理器
func NewTenantHandler(tenantRepo repository.TenantRepository, invalidator Invalidator) *TenantHandler {
	return &TenantHandler{
		tenantRepo:  tenantRepo,
		invalidator: invalidator,
	}
}

// GetCurrent 查询当前租户
func (h *TenantHandler) GetCurrent(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	dto.Success(c, tc.Record().Tenant)
}

// UpdateCurrent 更新当前租户的品牌、设置与限流配置
func (h *TenantHandler) UpdateCurrent(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// 凭证里的快照可能落后于数据库，更新前重新读取
	tenant, err := h.tenantRepo.GetByID(ctx, tc.TenantID())
	if err != nil {
		logger.Error(ctx, "failed to query tenant", err)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query tenant"))
		return
	}
	if tenant == nil {
		respondError(c, errors.ErrUnknownTenant)
		return
	}

	if req.Name != nil {
		tenant.Name = *req.Name
	}
	if req.Domain != nil {
		tenant.Domain = *req.Domain
	}
	if req.Branding != nil {
		tenant.Branding = req.Branding
	}
	if req.Settings != nil {
		tenant.Settings = req.Settings
	}
	if req.Limits != nil {
		tenant.Limits = req.Limits
	}

	if err := h.tenantRepo.Update(ctx, tenant); err != nil {
		logger.Error(ctx, "failed to update tenant", err)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to update tenant"))
		return
	}

	h.invalidate(ctx, tenant.Slug)
	dto.Success(c, tenant)
}

func (h *TenantHandler) invalidate(ctx context.Context, slug string) {
	if err := h.invalidator.Invalidate(ctx, slug); err != nil {
		logger.Warn(ctx, "failed to invalidate tenant snapshot", "error", err.Error(), "slug", slug)
	}
}
