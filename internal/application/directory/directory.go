// Package directory 提供租户目录解析能力
// 将租户 Slug 解析为包含目录、计价规则和限流配置的完整快照
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
	"movecrm-api/pkg/metrics"
)

// Cache 目录缓存接口（Redis 实现带 singleflight 防击穿）
type Cache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// Defaults 租户未单独配置时的全局默认值
type Defaults struct {
	Window                time.Duration
	PublicMaxRequests     int
	PublicMaxPerOrigin    int
	StaffMaxRequests      int
	StaffMaxPerOrigin     int
	DetectionThreshold    float64
	UnknownItemVolume     string
	UnknownItemLaborHours string
}

// EffectiveLimits 合并默认值后的限流配置
type EffectiveLimits struct {
	WindowSeconds      int `json:"window_seconds"`
	PublicMaxRequests  int `json:"public_max_requests"`
	PublicMaxPerOrigin int `json:"public_max_per_origin"`
	StaffMaxRequests   int `json:"staff_max_requests"`
	StaffMaxPerOrigin  int `json:"staff_max_per_origin"`
}

// Window 固定窗口长度
func (l EffectiveLimits) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
}

// EffectiveSettings 合并默认值后的租户设置
type EffectiveSettings struct {
	DetectionThreshold    float64 `json:"detection_threshold"`
	UnknownItemVolume     string  `json:"unknown_item_volume"`
	UnknownItemLaborHours string  `json:"unknown_item_labor_hours"`
}

// TenantRecord 租户目录快照
// DefaultRule 为 nil 表示租户没有唯一的活跃默认计价规则
type TenantRecord struct {
	Tenant      *entity.Tenant             `json:"tenant"`
	Catalog     []*entity.ItemCatalogEntry `json:"catalog"`
	DefaultRule *entity.PricingRule        `json:"default_rule,omitempty"`
	Limits      EffectiveLimits            `json:"limits"`
	Settings    EffectiveSettings          `json:"settings"`
}

// Directory 租户目录服务
type Directory struct {
	tenants  repository.TenantRepository
	catalog  repository.CatalogRepository
	rules    repository.PricingRuleRepository
	cache    Cache
	cacheTTL time.Duration
	defaults Defaults
}

// NewDirectory 创建租户目录服务
func NewDirectory(
	tenants repository.TenantRepository,
	catalog repository.CatalogRepository,
	rules repository.PricingRuleRepository,
	cache Cache,
	cacheTTL time.Duration,
	defaults Defaults,
) *Directory {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Directory{
		tenants:  tenants,
		catalog:  catalog,
		rules:    rules,
		cache:    cache,
		cacheTTL: cacheTTL,
		defaults: defaults,
	}
}

func cacheKey(slug string) string {
	return fmt.Sprintf("directory:tenant:%s", slug)
}

// Resolve 按 Slug 解析租户目录快照
// 未知或非活跃租户返回 ErrUnknownTenant；存储不可用返回 ErrTenantResolutionFailed
func (d *Directory) Resolve(ctx context.Context, slug string) (*TenantRecord, error) {
	if slug == "" {
		return nil, errors.ErrUnresolvedTenant
	}

	data, err := d.cache.GetOrLoadSafe(ctx, cacheKey(slug), d.cacheTTL, func() (interface{}, error) {
		return d.load(ctx, slug)
	})
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			metrics.TenantResolutionsTotal.WithLabelValues("unknown").Inc()
			return nil, appErr
		}
		metrics.TenantResolutionsTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "tenant resolution failed", err, "slug", slug)
		return nil, errors.ErrTenantResolutionFailed.WithError(err)
	}

	var record TenantRecord
	if err := json.Unmarshal(data, &record); err != nil {
		metrics.TenantResolutionsTotal.WithLabelValues("error").Inc()
		return nil, errors.ErrTenantResolutionFailed.WithError(err)
	}

	metrics.TenantResolutionsTotal.WithLabelValues("ok").Inc()
	return &record, nil
}

// Invalidate 使租户目录缓存失效（租户、目录或规则变更后调用）
func (d *Directory) Invalidate(ctx context.Context, slug string) error {
	return d.cache.Delete(ctx, cacheKey(slug))
}

// load 从数据库构建租户快照
func (d *Directory) load(ctx context.Context, slug string) (*TenantRecord, error) {
	tenant, err := d.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if tenant == nil || !tenant.IsActive() {
		// 不存在与停用不可区分，避免租户枚举
		return nil, errors.ErrUnknownTenant
	}

	catalog, err := d.catalog.ListActive(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	defaults, err := d.rules.ListActiveDefaults(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	record := &TenantRecord{
		Tenant:   tenant,
		Catalog:  catalog,
		Limits:   d.resolveLimits(tenant.Limits),
		Settings: d.resolveSettings(tenant.Settings),
	}
	// 恰好一条活跃默认规则才可用于计价
	if len(defaults) == 1 {
		record.DefaultRule = defaults[0]
	} else if len(defaults) > 1 {
		logger.Warn(ctx, "tenant has multiple active default pricing rules",
			"tenant_id", tenant.ID, "count", len(defaults))
	}
	return record, nil
}

func (d *Directory) resolveLimits(limits *entity.TenantLimits) EffectiveLimits {
	eff := EffectiveLimits{
		WindowSeconds:      int(d.defaults.Window / time.Second),
		PublicMaxRequests:  d.defaults.PublicMaxRequests,
		PublicMaxPerOrigin: d.defaults.PublicMaxPerOrigin,
		StaffMaxRequests:   d.defaults.StaffMaxRequests,
		StaffMaxPerOrigin:  d.defaults.StaffMaxPerOrigin,
	}
	if limits == nil {
		return eff
	}
	if limits.WindowSeconds > 0 {
		eff.WindowSeconds = limits.WindowSeconds
	}
	if limits.PublicMaxRequests > 0 {
		eff.PublicMaxRequests = limits.PublicMaxRequests
	}
	if limits.PublicMaxPerOrigin > 0 {
		eff.PublicMaxPerOrigin = limits.PublicMaxPerOrigin
	}
	if limits.StaffMaxRequests > 0 {
		eff.StaffMaxRequests = limits.StaffMaxRequests
	}
	if limits.StaffMaxPerOrigin > 0 {
		eff.StaffMaxPerOrigin = limits.StaffMaxPerOrigin
	}
	return eff
}

func (d *Directory) resolveSettings(settings *entity.TenantSettings) EffectiveSettings {
	eff := EffectiveSettings{
		DetectionThreshold:    d.defaults.DetectionThreshold,
		UnknownItemVolume:     d.defaults.UnknownItemVolume,
		UnknownItemLaborHours: d.defaults.UnknownItemLaborHours,
	}
	if settings == nil {
		return eff
	}
	if settings.DetectionThreshold > 0 {
		eff.DetectionThreshold = settings.DetectionThreshold
	}
	if settings.UnknownItemVolume != "" {
		eff.UnknownItemVolume = settings.UnknownItemVolume
	}
	if settings.UnknownItemLaborHours != "" {
		eff.UnknownItemLaborHours = settings.UnknownItemLaborHours
	}
	return eff
}
