// Package dto 提供 HTTP 层数据传输对象
package dto

// CreateCatalogEntryRequest 创建目录条目请求
// 体积与系数以十进制字符串传入，服务端校验后解析
type CreateCatalogEntryRequest struct {
	Name            string   `json:"name" binding:"required,max=128"`
	Aliases         []string `json:"aliases" binding:"omitempty,max=32,dive,max=128"`
	Category        string   `json:"category" binding:"omitempty,max=64"`
	BaseVolume      string   `json:"base_volume" binding:"required"`
	LaborMultiplier string   `json:"labor_multiplier" binding:"required"`
}

// UpdateCatalogEntryRequest 更新目录条目请求
// 字段为 nil 表示不修改
type UpdateCatalogEntryRequest struct {
	Name            *string   `json:"name" binding:"omitempty,max=128"`
	Aliases         *[]string `json:"aliases" binding:"omitempty,max=32,dive,max=128"`
	Category        *string   `json:"category" binding:"omitempty,max=64"`
	BaseVolume      *string   `json:"base_volume"`
	LaborMultiplier *string   `json:"labor_multiplier"`
	IsActive        *bool     `json:"is_active"`
}
