// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"movecrm-api/internal/domain/entity"
)

// PricingRuleRepository 计价规则仓储接口
type PricingRuleRepository interface {
	// Create 创建计价规则
	Create(ctx context.Context, rule *entity.PricingRule) error

	// GetByID 根据 ID 获取计价规则
	GetByID(ctx context.Context, tenantID, id string) (*entity.PricingRule, error)

	// Update 更新计价规则
	Update(ctx context.Context, rule *entity.PricingRule) error

	// ListByTenant 获取租户全部计价规则
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.PricingRule, error)

	// ListActiveDefaults 获取租户活跃的默认规则
	// 正常情况下应返回恰好一条；零条或多条由调用方判定为配置错误
	ListActiveDefaults(ctx context.Context, tenantID string) ([]*entity.PricingRule, error)
}
