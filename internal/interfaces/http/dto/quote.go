// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"movecrm-api/internal/application/quoteflow"
	"movecrm-api/internal/domain/entity"
)

// QuoteItemRequest 报价行项请求
// 标签在服务端按租户目录聚合，未命中目录的条目会标记为待审核
type QuoteItemRequest struct {
	Label      string   `json:"label" binding:"required,max=128"`
	Quantity   int      `json:"quantity" binding:"omitempty,min=1,max=999"`
	Confidence *float64 `json:"confidence" binding:"omitempty,min=0,max=1"`
}

// SubmitQuoteRequest 报价提交请求
type SubmitQuoteRequest struct {
	CustomerName    string             `json:"customer_name" binding:"required,max=128"`
	CustomerEmail   string             `json:"customer_email" binding:"required,email"`
	CustomerPhone   string             `json:"customer_phone" binding:"omitempty,max=32"`
	PickupAddress   string             `json:"pickup_address" binding:"omitempty,max=512"`
	DeliveryAddress string             `json:"delivery_address" binding:"omitempty,max=512"`
	MoveDate        *time.Time         `json:"move_date"`
	Notes           string             `json:"notes" binding:"omitempty,max=2000"`
	Items           []QuoteItemRequest `json:"items" binding:"omitempty,dive"`
}

// ToSubmitInput 转换为应用层提交参数
func (r *SubmitQuoteRequest) ToSubmitInput(source quoteflow.Source, origin string) quoteflow.SubmitInput {
	return quoteflow.SubmitInput{
		Source:          source,
		Origin:          origin,
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		PickupAddress:   r.PickupAddress,
		DeliveryAddress: r.DeliveryAddress,
		MoveDate:        r.MoveDate,
		Notes:           r.Notes,
		Items:           ToDetectedItems(r.Items),
	}
}

// AddQuoteItemsRequest 追加行项请求
type AddQuoteItemsRequest struct {
	Items []QuoteItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToDetectedItems 转换行项请求为聚合输入
func ToDetectedItems(items []QuoteItemRequest) []entity.DetectedItem {
	out := make([]entity.DetectedItem, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, entity.DetectedItem{
			RawLabel:   item.Label,
			Quantity:   qty,
			Confidence: item.Confidence,
		})
	}
	return out
}

// QuoteItemDTO 报价行项响应
type QuoteItemDTO struct {
	ID             string   `json:"id"`
	CatalogEntryID *string  `json:"catalog_entry_id,omitempty"`
	RawLabel       string   `json:"raw_label"`
	Quantity       int      `json:"quantity"`
	Volume         string   `json:"volume"`
	LaborHours     string   `json:"labor_hours"`
	Confidence     *float64 `json:"confidence,omitempty"`
	NeedsReview    bool     `json:"needs_review"`
}

// QuoteDTO 报价响应
// 金额字段以十进制字符串输出，避免浮点精度损失
type QuoteDTO struct {
	ID              string         `json:"id"`
	QuoteNumber     string         `json:"quote_number"`
	Status          string         `json:"status"`
	CustomerName    string         `json:"customer_name"`
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   string         `json:"customer_phone,omitempty"`
	PickupAddress   string         `json:"pickup_address,omitempty"`
	DeliveryAddress string         `json:"delivery_address,omitempty"`
	MoveDate        *time.Time     `json:"move_date,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Items           []QuoteItemDTO `json:"items"`
	TotalVolume     string         `json:"total_volume"`
	TotalLaborHours string         `json:"total_labor_hours"`
	Subtotal        string         `json:"subtotal"`
	Tax             string         `json:"tax"`
	Total           string         `json:"total"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ToQuoteDTO 将报价实体转换为响应 DTO
func ToQuoteDTO(q *entity.Quote) *QuoteDTO {
	if q == nil {
		return nil
	}
	items := make([]QuoteItemDTO, 0, len(q.Items))
	for _, item := range q.Items {
		items = append(items, QuoteItemDTO{
			ID:             item.ID,
			CatalogEntryID: item.CatalogEntryID,
			RawLabel:       item.RawLabel,
			Quantity:       item.Quantity,
			Volume:         item.Volume.String(),
			LaborHours:     item.LaborHours.String(),
			Confidence:     item.Confidence,
			NeedsReview:    item.NeedsReview,
		})
	}
	return &QuoteDTO{
		ID:              q.ID,
		QuoteNumber:     q.QuoteNumber,
		Status:          string(q.Status),
		CustomerName:    q.CustomerName,
		CustomerEmail:   q.CustomerEmail,
		CustomerPhone:   q.CustomerPhone,
		PickupAddress:   q.PickupAddress,
		DeliveryAddress: q.DeliveryAddress,
		MoveDate:        q.MoveDate,
		Notes:           q.Notes,
		Items:           items,
		TotalVolume:     q.TotalVolume.String(),
		TotalLaborHours: q.TotalLaborHours.String(),
		Subtotal:        q.Subtotal.String(),
		Tax:             q.Tax.String(),
		Total:           q.Total.String(),
		ExpiresAt:       q.ExpiresAt,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

// ToQuoteDTOs 批量转换报价实体
func ToQuoteDTOs(quotes []*entity.Quote) []*QuoteDTO {
	out := make([]*QuoteDTO, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, ToQuoteDTO(q))
	}
	return out
}
