package directory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	apperrors "movecrm-api/pkg/errors"
)

type fakeTenantRepo struct {
	repository.TenantRepository
	tenants map[string]*entity.Tenant
	err     error
}

func (r *fakeTenantRepo) GetBySlug(_ context.Context, slug string) (*entity.Tenant, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.tenants[slug], nil
}

type fakeCatalogRepo struct {
	repository.CatalogRepository
	entries []*entity.ItemCatalogEntry
}

func (r *fakeCatalogRepo) ListActive(_ context.Context, _ string) ([]*entity.ItemCatalogEntry, error) {
	return r.entries, nil
}

type fakeRuleRepo struct {
	repository.PricingRuleRepository
	defaults []*entity.PricingRule
}

func (r *fakeRuleRepo) ListActiveDefaults(_ context.Context, _ string) ([]*entity.PricingRule, error) {
	return r.defaults, nil
}

// fakeCache 直通缓存，带简单的内存存储
type fakeCache struct {
	data map[string][]byte
	err  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if cached, ok := c.data[key]; ok {
		return cached, nil
	}
	v, err := loader()
	if err != nil {
		return nil, err
	}
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	c.data[key] = bytes
	return bytes, nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func activeTenant(slug string) *entity.Tenant {
	t := entity.NewTenant("Acme Moving", slug)
	t.ID = "tenant-1"
	return t
}

func defaultRule() *entity.PricingRule {
	r := entity.NewPricingRule("tenant-1", "standard")
	r.ID = "rule-1"
	r.RatePerVolumeUnit = decimal.RequireFromString("4.50")
	r.IsDefault = true
	return r
}

func testDefaults() Defaults {
	return Defaults{
		Window:                time.Minute,
		PublicMaxRequests:     15,
		PublicMaxPerOrigin:    5,
		StaffMaxRequests:      120,
		StaffMaxPerOrigin:     60,
		DetectionThreshold:    0.4,
		UnknownItemVolume:     "10.0",
		UnknownItemLaborHours: "0.5",
	}
}

func TestDirectoryResolveActiveTenant(t *testing.T) {
	tenants := &fakeTenantRepo{tenants: map[string]*entity.Tenant{"acme": activeTenant("acme")}}
	catalog := &fakeCatalogRepo{entries: []*entity.ItemCatalogEntry{
		entity.NewItemCatalogEntry("tenant-1", "Sofa", decimal.RequireFromString("35"), decimal.RequireFromString("1.2")),
	}}
	rules := &fakeRuleRepo{defaults: []*entity.PricingRule{defaultRule()}}

	d := NewDirectory(tenants, catalog, rules, newFakeCache(), time.Minute, testDefaults())

	record, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", record.Tenant.ID)
	assert.Len(t, record.Catalog, 1)
	require.NotNil(t, record.DefaultRule)
	assert.Equal(t, "rule-1", record.DefaultRule.ID)
	assert.Equal(t, 15, record.Limits.PublicMaxRequests)
	assert.Equal(t, time.Minute, record.Limits.Window())
	assert.Equal(t, 0.4, record.Settings.DetectionThreshold)
}

func TestDirectoryResolveEmptySlug(t *testing.T) {
	d := NewDirectory(&fakeTenantRepo{}, &fakeCatalogRepo{}, &fakeRuleRepo{}, newFakeCache(), time.Minute, testDefaults())

	_, err := d.Resolve(context.Background(), "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnresolvedTenant, appErr.Code)
}

func TestDirectoryResolveUnknownTenant(t *testing.T) {
	d := NewDirectory(&fakeTenantRepo{tenants: map[string]*entity.Tenant{}}, &fakeCatalogRepo{}, &fakeRuleRepo{}, newFakeCache(), time.Minute, testDefaults())

	_, err := d.Resolve(context.Background(), "nobody")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnknownTenant, appErr.Code)
}

func TestDirectoryResolveInactiveTenantIndistinguishable(t *testing.T) {
	suspended := activeTenant("acme")
	suspended.Status = entity.TenantStatusSuspended
	d := NewDirectory(&fakeTenantRepo{tenants: map[string]*entity.Tenant{"acme": suspended}},
		&fakeCatalogRepo{}, &fakeRuleRepo{}, newFakeCache(), time.Minute, testDefaults())

	_, errInactive := d.Resolve(context.Background(), "acme")
	_, errMissing := d.Resolve(context.Background(), "nobody")

	appInactive, ok := apperrors.AsAppError(errInactive)
	require.True(t, ok)
	appMissing, ok := apperrors.AsAppError(errMissing)
	require.True(t, ok)
	assert.Equal(t, appMissing.Code, appInactive.Code)
	assert.Equal(t, appMissing.Message, appInactive.Message)
}

func TestDirectoryResolveFailsClosedOnStoreError(t *testing.T) {
	tenants := &fakeTenantRepo{err: errors.New("connection timeout")}
	d := NewDirectory(tenants, &fakeCatalogRepo{}, &fakeRuleRepo{}, newFakeCache(), time.Minute, testDefaults())

	_, err := d.Resolve(context.Background(), "acme")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeTenantResolutionFailed, appErr.Code)
}

func TestDirectoryNoDefaultRuleLeavesRuleNil(t *testing.T) {
	tenants := &fakeTenantRepo{tenants: map[string]*entity.Tenant{"acme": activeTenant("acme")}}

	// 零条默认规则
	d := NewDirectory(tenants, &fakeCatalogRepo{}, &fakeRuleRepo{}, newFakeCache(), time.Minute, testDefaults())
	record, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Nil(t, record.DefaultRule)

	// 多条默认规则同样视为缺失
	rules := &fakeRuleRepo{defaults: []*entity.PricingRule{defaultRule(), defaultRule()}}
	d = NewDirectory(tenants, &fakeCatalogRepo{}, rules, newFakeCache(), time.Minute, testDefaults())
	record, err = d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Nil(t, record.DefaultRule)
}

func TestDirectoryTenantOverridesLimits(t *testing.T) {
	tenant := activeTenant("acme")
	tenant.Limits = &entity.TenantLimits{WindowSeconds: 30, PublicMaxRequests: 5}
	tenants := &fakeTenantRepo{tenants: map[string]*entity.Tenant{"acme": tenant}}
	d := NewDirectory(tenants, &fakeCatalogRepo{}, &fakeRuleRepo{defaults: []*entity.PricingRule{defaultRule()}},
		newFakeCache(), time.Minute, testDefaults())

	record, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, record.Limits.Window())
	assert.Equal(t, 5, record.Limits.PublicMaxRequests)
	// 未覆盖的字段回退到默认值
	assert.Equal(t, 5, record.Limits.PublicMaxPerOrigin)
}

func TestDirectoryInvalidateForcesReload(t *testing.T) {
	tenant := activeTenant("acme")
	tenants := &fakeTenantRepo{tenants: map[string]*entity.Tenant{"acme": tenant}}
	cache := newFakeCache()
	d := NewDirectory(tenants, &fakeCatalogRepo{}, &fakeRuleRepo{defaults: []*entity.PricingRule{defaultRule()}},
		cache, time.Minute, testDefaults())

	record, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Moving", record.Tenant.Name)

	// 缓存命中，名称变更不可见
	tenant.Name = "Acme Moving & Storage"
	record, err = d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Moving", record.Tenant.Name)

	// 失效后重新加载
	require.NoError(t, d.Invalidate(context.Background(), "acme"))
	record, err = d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Moving & Storage", record.Tenant.Name)
}
