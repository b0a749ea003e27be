// Package guard 提供租户隔离能力
// 所有下游读写都必须持有本包签发的 TenantContext，不接受裸租户 ID
package guard

import (
	"context"

	"movecrm-api/internal/application/directory"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
)

// TenantContext 租户访问凭证
// 字段不可导出，构造后不可变；只能由 Guard 在请求域内签发
type TenantContext struct {
	record *directory.TenantRecord
}

// TenantID 租户 ID
func (tc *TenantContext) TenantID() string {
	return tc.record.Tenant.ID
}

// Slug 租户 Slug
func (tc *TenantContext) Slug() string {
	return tc.record.Tenant.Slug
}

// Record 租户目录快照
func (tc *TenantContext) Record() *directory.TenantRecord {
	return tc.record
}

// Limits 合并默认值后的限流配置
func (tc *TenantContext) Limits() directory.EffectiveLimits {
	return tc.record.Limits
}

// Settings 合并默认值后的租户设置
func (tc *TenantContext) Settings() directory.EffectiveSettings {
	return tc.record.Settings
}

// Resolver 租户目录解析接口
type Resolver interface {
	Resolve(ctx context.Context, slug string) (*directory.TenantRecord, error)
}

// Guard 租户隔离守卫
// 解析失败一律拒绝请求，绝不降级放行
type Guard struct {
	resolver Resolver
}

// NewGuard 创建租户隔离守卫
func NewGuard(resolver Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// ResolvePublic 公开请求路径：仅凭 Slug 签发租户凭证
func (g *Guard) ResolvePublic(ctx context.Context, slug string) (*TenantContext, error) {
	if slug == "" {
		return nil, errors.ErrUnresolvedTenant
	}
	record, err := g.resolver.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &TenantContext{record: record}, nil
}

// ResolveStaff 员工请求路径：校验令牌声明的租户与请求租户一致
// 不一致对外表现与租户不存在相同，避免探测其他租户
func (g *Guard) ResolveStaff(ctx context.Context, slug, claimTenantID string) (*TenantContext, error) {
	if slug == "" {
		return nil, errors.ErrUnresolvedTenant
	}
	if claimTenantID == "" {
		return nil, errors.ErrUnauthorized
	}
	record, err := g.resolver.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	if record.Tenant.ID != claimTenantID {
		logger.Warn(ctx, "tenant claim mismatch",
			"claim_tenant_id", claimTenantID, "resolved_tenant_id", record.Tenant.ID)
		return nil, errors.ErrTenantMismatch
	}
	return &TenantContext{record: record}, nil
}
