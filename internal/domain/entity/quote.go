// Package entity 定义领域实体
package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus 报价状态
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusApproved QuoteStatus = "approved"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// quoteTransitions 合法的状态迁移
// pending 可进入任意终态；approved 只能过期；rejected/expired 为终态
var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusPending:  {QuoteStatusApproved, QuoteStatusRejected, QuoteStatusExpired},
	QuoteStatusApproved: {QuoteStatusExpired},
}

// CanTransitionTo 检查状态迁移是否合法
func (s QuoteStatus) CanTransitionTo(target QuoteStatus) bool {
	for _, t := range quoteTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal 检查是否为终态
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusRejected || s == QuoteStatusExpired
}

// QuoteItem 报价行项
type QuoteItem struct {
	ID      string `json:"id"`
	QuoteID string `json:"quote_id"`
	// CatalogEntryID 匹配到的目录条目，nil 表示未匹配
	CatalogEntryID *string         `json:"catalog_entry_id,omitempty"`
	RawLabel       string          `json:"raw_label"`
	Quantity       int             `json:"quantity"`
	Volume         decimal.Decimal `json:"volume"`
	LaborHours     decimal.Decimal `json:"labor_hours"`
	// Confidence 识别置信度，nil 表示人工录入
	Confidence *float64 `json:"confidence,omitempty"`
	// NeedsReview 未匹配目录时置位，提示人工复核
	NeedsReview bool      `json:"needs_review"`
	CreatedAt   time.Time `json:"created_at"`
}

// Quote 报价实体
// 金额字段创建时一次性写入，此后只有状态可变
type Quote struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	QuoteNumber     string          `json:"quote_number"`
	Status          QuoteStatus     `json:"status"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	PickupAddress   string          `json:"pickup_address,omitempty"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	MoveDate        *time.Time      `json:"move_date,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Items           []QuoteItem     `json:"items,omitempty"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TotalLaborHours decimal.Decimal `json:"total_labor_hours"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	PricingRuleID   string          `json:"pricing_rule_id,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewQuote 创建新报价
func NewQuote(tenantID, quoteNumber string) *Quote {
	now := time.Now()
	return &Quote{
		TenantID:    tenantID,
		QuoteNumber: quoteNumber,
		Status:      QuoteStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// FormatQuoteNumber 生成报价编号，形如 Q2025010042
func FormatQuoteNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("Q%s%04d", now.Format("200601"), seq)
}

// IsExpired 检查报价是否已超过有效期
func (q *Quote) IsExpired(now time.Time) bool {
	return q.ExpiresAt != nil && now.After(*q.ExpiresAt)
}
