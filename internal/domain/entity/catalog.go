// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemCatalogEntry 物品目录条目
// 每个租户维护自己的目录，识别结果通过名称和别名匹配到条目
type ItemCatalogEntry struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	// Name 规范名称
	Name string `json:"name"`
	// Aliases 匹配用别名列表
	Aliases  []string `json:"aliases,omitempty"`
	Category string   `json:"category,omitempty"`
	// BaseVolume 单件体积（立方英尺）
	BaseVolume decimal.Decimal `json:"base_volume"`
	// LaborMultiplier 搬运难度系数
	LaborMultiplier decimal.Decimal `json:"labor_multiplier"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewItemCatalogEntry 创建目录条目
func NewItemCatalogEntry(tenantID, name string, baseVolume, laborMultiplier decimal.Decimal) *ItemCatalogEntry {
	now := time.Now()
	return &ItemCatalogEntry{
		TenantID:        tenantID,
		Name:            name,
		BaseVolume:      baseVolume,
		LaborMultiplier: laborMultiplier,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
