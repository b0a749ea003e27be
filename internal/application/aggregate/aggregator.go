// Package aggregate 提供识别结果聚合能力
// 将识别服务输出的原始标签列表转换为报价行项
package aggregate

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/pkg/logger"
	"movecrm-api/pkg/metrics"
)

// referenceUnit 工时公式的参考单位，所有租户共享
var referenceUnit = decimal.NewFromInt(1)

// Aggregator 识别结果聚合器
type Aggregator struct{}

// NewAggregator 创建聚合器
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate 将识别出的物品聚合为报价行项
// 低于置信度阈值的条目被丢弃（人工录入的条目不过滤）；
// 未匹配目录的条目使用保守估计并标记待复核，绝不静默丢弃
func (a *Aggregator) Aggregate(ctx context.Context, tc *guard.TenantContext, rawItems []entity.DetectedItem) []entity.QuoteItem {
	record := tc.Record()
	settings := tc.Settings()
	matcher := NewMatcher(record.Catalog)

	unknownVolume := parseDecimal(settings.UnknownItemVolume, "10.0")
	unknownLabor := parseDecimal(settings.UnknownItemLaborHours, "0.5")

	// 按目录条目合并数量，未匹配条目按原始标签单独保留
	matched := make(map[string]*mergedItem)
	var unmatched []entity.QuoteItem

	for _, raw := range rawItems {
		qty := raw.Quantity
		if qty <= 0 {
			qty = 1
		}

		// confidence 为 nil 表示人工录入，跳过阈值过滤
		if raw.Confidence != nil && *raw.Confidence < settings.DetectionThreshold {
			logger.Debug(ctx, "detection below threshold, dropped",
				"raw_label", raw.RawLabel, "confidence", *raw.Confidence)
			continue
		}

		entry := matcher.Match(raw.RawLabel)
		if entry == nil {
			metrics.DetectionItemsMatched.WithLabelValues(tc.Slug(), "unmatched").Inc()
			unmatched = append(unmatched, entity.QuoteItem{
				RawLabel:    raw.RawLabel,
				Quantity:    qty,
				Volume:      unknownVolume.Mul(decimal.NewFromInt(int64(qty))),
				LaborHours:  unknownLabor.Mul(decimal.NewFromInt(int64(qty))),
				Confidence:  raw.Confidence,
				NeedsReview: true,
			})
			continue
		}

		metrics.DetectionItemsMatched.WithLabelValues(tc.Slug(), "matched").Inc()
		m, ok := matched[entry.ID]
		if !ok {
			m = &mergedItem{entry: entry}
			matched[entry.ID] = m
		}
		m.quantity += qty
		m.confidence = maxConfidence(m.confidence, raw.Confidence)
	}

	items := make([]entity.QuoteItem, 0, len(matched)+len(unmatched))
	for _, m := range matched {
		qty := decimal.NewFromInt(int64(m.quantity))
		id := m.entry.ID
		items = append(items, entity.QuoteItem{
			CatalogEntryID: &id,
			RawLabel:       m.entry.Name,
			Quantity:       m.quantity,
			Volume:         m.entry.BaseVolume.Mul(qty),
			LaborHours:     m.entry.BaseVolume.Mul(m.entry.LaborMultiplier).Mul(qty).Div(referenceUnit),
			Confidence:     m.confidence,
		})
	}

	// 已匹配条目按规范名称排序，未匹配条目按原始标签排序，输出确定有序
	sort.Slice(items, func(i, j int) bool {
		return items[i].RawLabel < items[j].RawLabel
	})
	sort.Slice(unmatched, func(i, j int) bool {
		return unmatched[i].RawLabel < unmatched[j].RawLabel
	})
	return append(items, unmatched...)
}

type mergedItem struct {
	entry      *entity.ItemCatalogEntry
	quantity   int
	confidence *float64
}

func maxConfidence(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil || *a >= *b {
		return a
	}
	return b
}

func parseDecimal(s, fallback string) decimal.Decimal {
	if s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}
