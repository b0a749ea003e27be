// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"movecrm-api/internal/domain/entity"
)

// CatalogRepository 物品目录仓储接口
type CatalogRepository interface {
	// Create 创建目录条目
	Create(ctx context.Context, entry *entity.ItemCatalogEntry) error

	// GetByID 根据 ID 获取目录条目
	GetByID(ctx context.Context, tenantID, id string) (*entity.ItemCatalogEntry, error)

	// Update 更新目录条目
	Update(ctx context.Context, entry *entity.ItemCatalogEntry) error

	// Delete 删除目录条目（软删除，置为非活跃）
	Delete(ctx context.Context, tenantID, id string) error

	// ListActive 获取租户全部活跃目录条目
	ListActive(ctx context.Context, tenantID string) ([]*entity.ItemCatalogEntry, error)

	// List 分页获取租户目录条目
	List(ctx context.Context, tenantID string, pagination Pagination) (*PagedResult[*entity.ItemCatalogEntry], error)
}
