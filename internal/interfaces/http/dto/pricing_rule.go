// Package dto 提供 HTTP 层数据传输对象
package dto

// CreatePricingRuleRequest 创建计价规则请求
// 费率以十进制字符串传入，服务端校验后解析
type CreatePricingRuleRequest struct {
	Name              string `json:"name" binding:"required,max=128"`
	RatePerVolumeUnit string `json:"rate_per_volume_unit" binding:"required"`
	LaborRatePerHour  string `json:"labor_rate_per_hour" binding:"required"`
	MinimumCharge     string `json:"minimum_charge" binding:"required"`
	TaxRate           string `json:"tax_rate" binding:"required"`
	IsDefault         bool   `json:"is_default"`
}

// UpdatePricingRuleRequest 更新计价规则请求
// 字段为 nil 表示不修改
type UpdatePricingRuleRequest struct {
	Name              *string `json:"name" binding:"omitempty,max=128"`
	RatePerVolumeUnit *string `json:"rate_per_volume_unit"`
	LaborRatePerHour  *string `json:"labor_rate_per_hour"`
	MinimumCharge     *string `json:"minimum_charge"`
	TaxRate           *string `json:"tax_rate"`
	IsDefault         *bool   `json:"is_default"`
	IsActive          *bool   `json:"is_active"`
}
