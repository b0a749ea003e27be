// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"movecrm-api/internal/domain/entity"
)

// QuoteFilter 报价查询条件
type QuoteFilter struct {
	Status entity.QuoteStatus `json:"status,omitempty"`
	Search string             `json:"search,omitempty"`
}

// QuoteRepository 报价仓储接口
type QuoteRepository interface {
	// Create 创建报价（含行项，在同一事务中）
	Create(ctx context.Context, quote *entity.Quote) error

	// GetByID 根据 ID 获取报价（含行项）
	GetByID(ctx context.Context, tenantID, id string) (*entity.Quote, error)

	// GetByNumber 根据编号获取报价（含行项）
	GetByNumber(ctx context.Context, tenantID, number string) (*entity.Quote, error)

	// List 分页获取租户报价列表
	List(ctx context.Context, tenantID string, filter QuoteFilter, pagination Pagination) (*PagedResult[*entity.Quote], error)

	// UpdateStatus 状态迁移，from 不匹配时返回 ErrInvalidTransition
	UpdateStatus(ctx context.Context, tenantID, id string, from, to entity.QuoteStatus) error

	// UpdateTotals 重新写入金额汇总字段（重算路径）
	UpdateTotals(ctx context.Context, quote *entity.Quote) error

	// AddItem 追加行项
	AddItem(ctx context.Context, tenantID string, item *entity.QuoteItem) error

	// RemoveItem 删除行项
	RemoveItem(ctx context.Context, tenantID, quoteID, itemID string) error

	// NextSequence 取下一个报价编号序号（按租户和月份递增）
	NextSequence(ctx context.Context, tenantID string, month time.Time) (int64, error)

	// ExpireStale 将过期的 pending/approved 报价置为 expired，返回影响行数
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
