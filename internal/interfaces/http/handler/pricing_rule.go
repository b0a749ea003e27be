// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
)

// PricingRuleHandler 计价规则处理器
// 规则属于租户快照的一部分，写操作后让目录缓存失效
type PricingRuleHandler struct {
	ruleRepo    repository.PricingRuleRepository
	invalidator Invalidator
}

// NewPricingRuleHandler 创建计价规则处理器
func NewPricingRuleHandler(ruleRepo repository.PricingRuleRepository, invalidator Invalidator) *PricingRuleHandler {
	return &PricingRuleHandler{
		ruleRepo:    ruleRepo,
		invalidator: invalidator,
	}
}

// List 查询租户全部计价规则
func (h *PricingRuleHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	rules, err := h.ruleRepo.ListByTenant(ctx, tc.TenantID())
	if err != nil {
		logger.Error(ctx, "failed to list pricing rules", err)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list pricing rules"))
		return
	}

	dto.Success(c, rules)
}

// Get 按 ID 查询计价规则
func (h *PricingRuleHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	rule, err := h.ruleRepo.GetByID(ctx, tc.TenantID(), c.Param("rid"))
	if err != nil {
		logger.Error(ctx, "failed to query pricing rule", err, "rule_id", c.Param("rid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query pricing rule"))
		return
	}
	if rule == nil {
		dto.NotFound(c, "pricing rule not found")
		return
	}

	dto.Success(c, rule)
}

// Create 创建计价规则
func (h *PricingRuleHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.CreatePricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	rule := entity.NewPricingRule(tc.TenantID(), req.Name)
	rule.IsDefault = req.IsDefault
	if err := h.applyRates(c, rule, &req.RatePerVolumeUnit, &req.LaborRatePerHour, &req.MinimumCharge, &req.TaxRate); err != nil {
		return
	}

	if err := h.ruleRepo.Create(ctx, rule); err != nil {
		logger.Error(ctx, "failed to create pricing rule", err, "name", req.Name)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to create pricing rule"))
		return
	}

	h.invalidate(ctx, tc.Slug())
	dto.Created(c, rule)
}

// Update 更新计价规则
func (h *PricingRuleHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.UpdatePricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	rule, err := h.ruleRepo.GetByID(ctx, tc.TenantID(), c.Param("rid"))
	if err != nil {
		logger.Error(ctx, "failed to query pricing rule", err, "rule_id", c.Param("rid"))
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to query pricing rule"))
		return
	}
	if rule == nil {
		dto.NotFound(c, "pricing rule not found")
		return
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.IsDefault != nil {
		rule.IsDefault = *req.IsDefault
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := h.applyRates(c, rule, req.RatePerVolumeUnit, req.LaborRatePerHour, req.MinimumCharge, req.TaxRate); err != nil {
		return
	}

	if err := h.ruleRepo.Update(ctx, rule); err != nil {
		logger.Error(ctx, "failed to update pricing rule", err, "rule_id", rule.ID)
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to update pricing rule"))
		return
	}

	h.invalidate(ctx, tc.Slug())
	dto.Success(c, rule)
}

// applyRates 解析并写入费率字段，nil 表示不修改
// 解析失败时已写出 400 响应，调用方直接返回
func (h *PricingRuleHandler) applyRates(c *gin.Context, rule *entity.PricingRule, rate, laborRate, minCharge, taxRate *string) error {
	set := func(field *decimal.Decimal, raw *string, name string) error {
		if raw == nil {
			return nil
		}
		d, err := decimal.NewFromString(*raw)
		if err != nil || d.Sign() < 0 {
			dto.BadRequest(c, "invalid "+name)
			return errors.New(errors.CodeInvalidParam, "invalid "+name)
		}
		*field = d
		return nil
	}

	if err := set(&rule.RatePerVolumeUnit, rate, "rate_per_volume_unit"); err != nil {
		return err
	}
	if err := set(&rule.LaborRatePerHour, laborRate, "labor_rate_per_hour"); err != nil {
		return err
	}
	if err := set(&rule.MinimumCharge, minCharge, "minimum_charge"); err != nil {
		return err
	}
	return set(&rule.TaxRate, taxRate, "tax_rate")
}

func (h *PricingRuleHandler) invalidate(ctx context.Context, slug string) {
	if err := h.invalidator.Invalidate(ctx, slug); err != nil {
		logger.Warn(ctx, "failed to invalidate tenant snapshot", "error", err.Error(), "slug", slug)
	}
}
