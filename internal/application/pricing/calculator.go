// Package pricing 提供报价金额计算能力
package pricing

import (
	"github.com/shopspring/decimal"

	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/pkg/errors"
)

// Totals 报价金额汇总
type Totals struct {
	TotalVolume     decimal.Decimal
	TotalLaborHours decimal.Decimal
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	RuleID          string
}

// Calculator 报价计算器
// 纯函数，无 I/O；全程定点十进制运算，仅在税额处舍入一次（两位小数，四舍五入）
type Calculator struct{}

// NewCalculator 创建计算器
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Price 按租户默认计价规则计算金额
// 租户没有唯一活跃默认规则时返回 ErrNoPricingRule，这是配置错误，不自动重试
func (c *Calculator) Price(tc *guard.TenantContext, items []entity.QuoteItem) (*Totals, error) {
	rule := tc.Record().DefaultRule
	if rule == nil {
		return nil, errors.ErrNoPricingRule
	}

	totalVolume := decimal.Zero
	totalLabor := decimal.Zero
	for _, item := range items {
		totalVolume = totalVolume.Add(item.Volume)
		totalLabor = totalLabor.Add(item.LaborHours)
	}

	rawCost := totalVolume.Mul(rule.RatePerVolumeUnit).Add(totalLabor.Mul(rule.LaborRatePerHour))

	// 最低收费作用于税前小计，税始终按落底后的小计计算
	subtotal := rawCost
	if subtotal.LessThan(rule.MinimumCharge) {
		subtotal = rule.MinimumCharge
	}

	tax := subtotal.Mul(rule.TaxRate).Round(2)
	total := subtotal.Add(tax)

	return &Totals{
		TotalVolume:     totalVolume,
		TotalLaborHours: totalLabor,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		RuleID:          rule.ID,
	}, nil
}
