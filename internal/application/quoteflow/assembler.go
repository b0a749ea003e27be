// Package quoteflow 提供报价组装与状态流转能力
package quoteflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"movecrm-api/internal/application/aggregate"
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/pricing"
	"movecrm-api/internal/application/ratelimit"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
	"movecrm-api/pkg/metrics"
)

// 限流端点类别
const (
	EndpointPublicQuote = "public_quote"
	EndpointStaffQuote  = "staff_quote"
)

// Source 报价来源
type Source string

const (
	SourcePublic Source = "public"
	SourceStaff  Source = "staff"
)

// SubmitInput 报价提交参数
type SubmitInput struct {
	Source          Source
	Origin          string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	PickupAddress   string
	DeliveryAddress string
	MoveDate        *time.Time
	Notes           string
	Items           []entity.DetectedItem
}

// Assembler 报价组装器
// submit 按 限流 -> 聚合 -> 计价 -> 持久化 顺序执行；
// 聚合或计价失败整体中止，不落任何部分数据
type Assembler struct {
	limiter    *ratelimit.Limiter
	aggregator *aggregate.Aggregator
	calculator *pricing.Calculator
	quotes     repository.QuoteRepository
	tx         repository.Transactor
	tenantCtx  repository.TenantContextManager
	expiryDays int
	now        func() time.Time
}

// NewAssembler 创建报价组装器
func NewAssembler(
	limiter *ratelimit.Limiter,
	aggregator *aggregate.Aggregator,
	calculator *pricing.Calculator,
	quotes repository.QuoteRepository,
	tx repository.Transactor,
	tenantCtx repository.TenantContextManager,
	expiryDays int,
) *Assembler {
	if expiryDays <= 0 {
		expiryDays = 30
	}
	return &Assembler{
		limiter:    limiter,
		aggregator: aggregator,
		calculator: calculator,
		quotes:     quotes,
		tx:         tx,
		tenantCtx:  tenantCtx,
		expiryDays: expiryDays,
		now:        time.Now,
	}
}

// Submit 提交新报价
func (a *Assembler) Submit(ctx context.Context, tc *guard.TenantContext, input SubmitInput) (*entity.Quote, error) {
	if err := a.admit(ctx, tc, input.Source, input.Origin); err != nil {
		return nil, err
	}

	items := a.aggregator.Aggregate(ctx, tc, input.Items)

	totals, err := a.calculator.Price(tc, items)
	if err != nil {
		return nil, err
	}

	now := a.now()
	expiresAt := now.AddDate(0, 0, a.expiryDays)
	quote := &entity.Quote{
		ID:              uuid.NewString(),
		TenantID:        tc.TenantID(),
		Status:          entity.QuoteStatusPending,
		CustomerName:    input.CustomerName,
		CustomerEmail:   input.CustomerEmail,
		CustomerPhone:   input.CustomerPhone,
		PickupAddress:   input.PickupAddress,
		DeliveryAddress: input.DeliveryAddress,
		MoveDate:        input.MoveDate,
		Notes:           input.Notes,
		TotalVolume:     totals.TotalVolume,
		TotalLaborHours: totals.TotalLaborHours,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Total:           totals.Total,
		PricingRuleID:   totals.RuleID,
		ExpiresAt:       &expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].QuoteID = quote.ID
		items[i].CreatedAt = now
	}
	quote.Items = items

	err = a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.tenantCtx.SetTenant(txCtx, tc.TenantID()); err != nil {
			return err
		}
		seq, err := a.quotes.NextSequence(txCtx, tc.TenantID(), now)
		if err != nil {
			return err
		}
		quote.QuoteNumber = entity.FormatQuoteNumber(now, seq)
		return a.quotes.Create(txCtx, quote)
	})
	if err != nil {
		logger.Error(ctx, "quote creation failed", err, "tenant_id", tc.TenantID())
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create quote")
	}

	metrics.QuotesCreatedTotal.WithLabelValues(tc.Slug(), string(input.Source)).Inc()
	total, _ := quote.Total.Float64()
	metrics.QuoteTotalAmount.WithLabelValues(tc.Slug()).Observe(total)
	logger.Info(ctx, "quote created",
		"quote_id", quote.ID, "quote_number", quote.QuoteNumber, "total", quote.Total.String())
	return quote, nil
}

// Approve 批准报价，仅允许从 pending 进入
func (a *Assembler) Approve(ctx context.Context, tc *guard.TenantContext, quoteID string) (*entity.Quote, error) {
	return a.transition(ctx, tc, quoteID, entity.QuoteStatusApproved)
}

// Reject 拒绝报价，仅允许从 pending 进入
func (a *Assembler) Reject(ctx context.Context, tc *guard.TenantContext, quoteID string) (*entity.Quote, error) {
	return a.transition(ctx, tc, quoteID, entity.QuoteStatusRejected)
}

func (a *Assembler) transition(ctx context.Context, tc *guard.TenantContext, quoteID string, target entity.QuoteStatus) (*entity.Quote, error) {
	var quote *entity.Quote
	err := a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.tenantCtx.SetTenant(txCtx, tc.TenantID()); err != nil {
			return err
		}
		q, err := a.quotes.GetByID(txCtx, tc.TenantID(), quoteID)
		if err != nil {
			return err
		}
		if q == nil {
			return errors.ErrQuoteNotFound
		}
		if q.Status != entity.QuoteStatusPending {
			return errors.ErrInvalidTransition.WithDetail(string(q.Status) + " -> " + string(target))
		}
		if err := a.quotes.UpdateStatus(txCtx, tc.TenantID(), quoteID, entity.QuoteStatusPending, target); err != nil {
			return err
		}
		q.Status = target
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.QuoteTransitionsTotal.WithLabelValues(tc.Slug(), string(target)).Inc()
	logger.Info(ctx, "quote transitioned",
		"quote_id", quoteID, "to_status", string(target))
	return quote, nil
}

// AppendItems 为既有报价追加识别或人工条目并重新计价
// 仅允许在 pending 状态下修改，金额随之整体重写
func (a *Assembler) AppendItems(ctx context.Context, tc *guard.TenantContext, quoteID string, rawItems []entity.DetectedItem) (*entity.Quote, error) {
	newItems := a.aggregator.Aggregate(ctx, tc, rawItems)

	var quote *entity.Quote
	err := a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.tenantCtx.SetTenant(txCtx, tc.TenantID()); err != nil {
			return err
		}
		q, err := a.quotes.GetByID(txCtx, tc.TenantID(), quoteID)
		if err != nil {
			return err
		}
		if q == nil {
			return errors.ErrQuoteNotFound
		}
		if q.Status != entity.QuoteStatusPending {
			return errors.ErrInvalidTransition.WithDetail("quote is " + string(q.Status))
		}

		now := a.now()
		for i := range newItems {
			newItems[i].ID = uuid.NewString()
			newItems[i].QuoteID = q.ID
			newItems[i].CreatedAt = now
			if err := a.quotes.AddItem(txCtx, tc.TenantID(), &newItems[i]); err != nil {
				return err
			}
		}
		q.Items = append(q.Items, newItems...)

		totals, err := a.calculator.Price(tc, q.Items)
		if err != nil {
			return err
		}
		applyTotals(q, totals, now)
		if err := a.quotes.UpdateTotals(txCtx, q); err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// RemoveItem 删除报价行项并重新计价，仅允许在 pending 状态下修改
func (a *Assembler) RemoveItem(ctx context.Context, tc *guard.TenantContext, quoteID, itemID string) (*entity.Quote, error) {
	var quote *entity.Quote
	err := a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.tenantCtx.SetTenant(txCtx, tc.TenantID()); err != nil {
			return err
		}
		q, err := a.quotes.GetByID(txCtx, tc.TenantID(), quoteID)
		if err != nil {
			return err
		}
		if q == nil {
			return errors.ErrQuoteNotFound
		}
		if q.Status != entity.QuoteStatusPending {
			return errors.ErrInvalidTransition.WithDetail("quote is " + string(q.Status))
		}

		if err := a.quotes.RemoveItem(txCtx, tc.TenantID(), quoteID, itemID); err != nil {
			return err
		}
		kept := q.Items[:0]
		for _, item := range q.Items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		q.Items = kept

		totals, err := a.calculator.Price(tc, q.Items)
		if err != nil {
			return err
		}
		applyTotals(q, totals, a.now())
		if err := a.quotes.UpdateTotals(txCtx, q); err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// Recalculate 按当前行项与默认规则重算金额，仅允许在 pending 状态下执行
func (a *Assembler) Recalculate(ctx context.Context, tc *guard.TenantContext, quoteID string) (*entity.Quote, error) {
	var quote *entity.Quote
	err := a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.tenantCtx.SetTenant(txCtx, tc.TenantID()); err != nil {
			return err
		}
		q, err := a.quotes.GetByID(txCtx, tc.TenantID(), quoteID)
		if err != nil {
			return err
		}
		if q == nil {
			return errors.ErrQuoteNotFound
		}
		if q.Status != entity.QuoteStatusPending {
			return errors.ErrInvalidTransition.WithDetail("quote is " + string(q.Status))
		}

		totals, err := a.calculator.Price(tc, q.Items)
		if err != nil {
			return err
		}
		applyTotals(q, totals, a.now())
		if err := a.quotes.UpdateTotals(txCtx, q); err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// ExpireStale 将超过有效期的 pending/approved 报价置为 expired
// expired 是终态，不可逆；由 quote-sweeper 周期触发
func (a *Assembler) ExpireStale(ctx context.Context) (int64, error) {
	count, err := a.quotes.ExpireStale(ctx, a.now())
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to expire stale quotes")
	}
	if count > 0 {
		logger.Info(ctx, "expired stale quotes", "count", count)
	}
	return count, nil
}

// admit 执行限流判定，超限返回 ErrRateLimited 并携带重试间隔
func (a *Assembler) admit(ctx context.Context, tc *guard.TenantContext, source Source, origin string) error {
	limits := tc.Limits()
	endpoint := EndpointPublicQuote
	check := ratelimit.Limits{
		Window:       limits.Window(),
		MaxRequests:  limits.PublicMaxRequests,
		MaxPerOrigin: limits.PublicMaxPerOrigin,
	}
	if source == SourceStaff {
		endpoint = EndpointStaffQuote
		check.MaxRequests = limits.StaffMaxRequests
		check.MaxPerOrigin = limits.StaffMaxPerOrigin
	}

	decision, err := a.limiter.Check(ctx, tc.TenantID(), origin, endpoint, check)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		seconds := int(decision.RetryAfter / time.Second)
		if decision.RetryAfter%time.Second > 0 {
			seconds++
		}
		return errors.ErrRateLimited.WithRetryAfter(seconds)
	}
	return nil
}

func applyTotals(q *entity.Quote, totals *pricing.Totals, now time.Time) {
	q.TotalVolume = totals.TotalVolume
	q.TotalLaborHours = totals.TotalLaborHours
	q.Subtotal = totals.Subtotal
	q.Tax = totals.Tax
	q.Total = totals.Total
	q.PricingRuleID = totals.RuleID
	q.UpdatedAt = now
}
