// Package entity 定义领域实体
package entity

import (
	"time"
)

// TenantStatus 租户状态
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// TenantLimits 租户限流配置
// 为零的字段表示使用全局默认值
type TenantLimits struct {
	WindowSeconds      int `json:"window_seconds,omitempty"`
	PublicMaxRequests  int `json:"public_max_requests,omitempty"`
	PublicMaxPerOrigin int `json:"public_max_per_origin,omitempty"`
	StaffMaxRequests   int `json:"staff_max_requests,omitempty"`
	StaffMaxPerOrigin  int `json:"staff_max_per_origin,omitempty"`
}

// TenantSettings 租户设置
type TenantSettings struct {
	// DetectionThreshold 识别置信度阈值，低于该值的检测结果被丢弃
	DetectionThreshold float64 `json:"detection_threshold,omitempty"`
	// UnknownItemVolume 未匹配目录项的保守体积估计（立方英尺，十进制字符串）
	UnknownItemVolume string `json:"unknown_item_volume,omitempty"`
	// UnknownItemLaborHours 未匹配目录项的保守工时估计（十进制字符串）
	UnknownItemLaborHours string `json:"unknown_item_labor_hours,omitempty"`
}

// TenantBranding 租户品牌配置（公开小部件使用）
type TenantBranding struct {
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
}

// Tenant 租户实体
type Tenant struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Domain    string          `json:"domain,omitempty"`
	Branding  *TenantBranding `json:"branding,omitempty"`
	Settings  *TenantSettings `json:"settings,omitempty"`
	Limits    *TenantLimits   `json:"limits,omitempty"`
	Status    TenantStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewTenant 创建新租户
func NewTenant(name, slug string) *Tenant {
	now := time.Now()
	return &Tenant{
		Name:   name,
		Slug:   slug,
		Status: TenantStatusActive,
		Settings: &TenantSettings{
			DetectionThreshold: 0.4,
		},
		Branding:  &TenantBranding{},
		Limits:    &TenantLimits{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive 检查租户是否活跃
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
