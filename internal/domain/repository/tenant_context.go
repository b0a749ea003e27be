// Package repository 定义数据访问层接口
package repository

import "context"

// TenantContextManager 租户上下文管理接口
// 在事务内设置 app.current_tenant_id，供 PostgreSQL RLS 策略使用
type TenantContextManager interface {
	// SetTenant 设置当前事务的租户
	SetTenant(ctx context.Context, tenantID string) error
	// ClearTenant 清除租户设置
	ClearTenant(ctx context.Context) error
}
