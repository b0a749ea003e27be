// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingRule 计价规则
// 每个租户应恰好有一条活跃的默认规则，报价计算以其为准
type PricingRule struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	// RatePerVolumeUnit 每单位体积费率
	RatePerVolumeUnit decimal.Decimal `json:"rate_per_volume_unit"`
	// LaborRatePerHour 每工时费率
	LaborRatePerHour decimal.Decimal `json:"labor_rate_per_hour"`
	// MinimumCharge 最低收费，作用于税前小计
	MinimumCharge decimal.Decimal `json:"minimum_charge"`
	// TaxRate 税率（如 0.085 表示 8.5%）
	TaxRate   decimal.Decimal `json:"tax_rate"`
	IsDefault bool            `json:"is_default"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewPricingRule 创建计价规则
func NewPricingRule(tenantID, name string) *PricingRule {
	now := time.Now()
	return &PricingRule{
		TenantID:  tenantID,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
