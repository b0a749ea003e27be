// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"movecrm-api/internal/application/directory"
	"movecrm-api/internal/domain/entity"
)

// WidgetCatalogItem 挂件目录条目
// 只暴露名称和分类，体积与费率属于租户内部数据
type WidgetCatalogItem struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// WidgetConfigResponse 嵌入式报价挂件配置
type WidgetConfigResponse struct {
	TenantName string                 `json:"tenant_name"`
	Slug       string                 `json:"slug"`
	Branding   *entity.TenantBranding `json:"branding,omitempty"`
	Catalog    []WidgetCatalogItem    `json:"catalog"`
}

// ToWidgetConfigResponse 从租户目录快照构建挂件配置
func ToWidgetConfigResponse(record *directory.TenantRecord) *WidgetConfigResponse {
	if record == nil || record.Tenant == nil {
		return nil
	}
	catalog := make([]WidgetCatalogItem, 0, len(record.Catalog))
	for _, entry := range record.Catalog {
		catalog = append(catalog, WidgetCatalogItem{
			Name:     entry.Name,
			Category: entry.Category,
		})
	}
	return &WidgetConfigResponse{
		TenantName: record.Tenant.Name,
		Slug:       record.Tenant.Slug,
		Branding:   record.Tenant.Branding,
		Catalog:    catalog,
	}
}

// UpdateTenantRequest 租户更新请求
// 字段为 nil 表示不修改
type UpdateTenantRequest struct {
	Name     *string                `json:"name" binding:"omitempty,max=128"`
	Domain   *string                `json:"domain" binding:"omitempty,max=255"`
	Branding *entity.TenantBranding `json:"branding"`
	Settings *entity.TenantSettings `json:"settings"`
	Limits   *entity.TenantLimits   `json:"limits"`
}
