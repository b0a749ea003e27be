// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/pkg/errors"
)

// QuoteRepository 报价仓储实现
type QuoteRepository struct {
	client *Client
}

// NewQuoteRepository 创建报价仓储
func NewQuoteRepository(client *Client) *QuoteRepository {
	return &QuoteRepository{client: client}
}

const quoteColumns = `id, tenant_id, quote_number, status, customer_name, customer_email, customer_phone,
	pickup_address, delivery_address, move_date, notes,
	total_volume, total_labor_hours, subtotal, tax, total, pricing_rule_id,
	expires_at, created_at, updated_at`

const quoteItemColumns = `id, quote_id, catalog_entry_id, raw_label, quantity, volume, labor_hours, confidence, needs_review, created_at`

// Create 创建报价（含行项）
func (r *QuoteRepository) Create(ctx context.Context, quote *entity.Quote) error {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.Create")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	query := `
		INSERT INTO quotes (id, tenant_id, quote_number, status, customer_name, customer_email, customer_phone,
			pickup_address, delivery_address, move_date, notes,
			total_volume, total_labor_hours, subtotal, tax, total, pricing_rule_id,
			expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query,
		quote.ID, quote.TenantID, quote.QuoteNumber, quote.Status,
		quote.CustomerName, quote.CustomerEmail, nullString(quote.CustomerPhone),
		nullString(quote.PickupAddress), nullString(quote.DeliveryAddress), quote.MoveDate, nullString(quote.Notes),
		quote.TotalVolume, quote.TotalLaborHours, quote.Subtotal, quote.Tax, quote.Total,
		nullString(quote.PricingRuleID), quote.ExpiresAt,
	).Scan(&quote.CreatedAt, &quote.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create quote: %w", err)
	}

	for i := range quote.Items {
		if err := r.insertItem(ctx, q, &quote.Items[i]); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// GetByID 根据 ID 获取报价（含行项）
func (r *QuoteRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Quote, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`SELECT %s FROM quotes WHERE tenant_id = $1 AND id = $2`, quoteColumns)
	quote, err := scanQuote(q.QueryRowContext(ctx, query, tenantID, id))
	if err != nil || quote == nil {
		return quote, err
	}
	if err := r.loadItems(ctx, q, quote); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return quote, nil
}

// GetByNumber 根据编号获取报价（含行项）
func (r *QuoteRepository) GetByNumber(ctx context.Context, tenantID, number string) (*entity.Quote, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.GetByNumber")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`SELECT %s FROM quotes WHERE tenant_id = $1 AND quote_number = $2`, quoteColumns)
	quote, err := scanQuote(q.QueryRowContext(ctx, query, tenantID, number))
	if err != nil || quote == nil {
		return quote, err
	}
	if err := r.loadItems(ctx, q, quote); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return quote, nil
}

// List 分页获取租户报价列表
func (r *QuoteRepository) List(ctx context.Context, tenantID string, filter repository.QuoteFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Quote], error) {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.List")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	whereClause := "tenant_id = $1"
	args := []interface{}{tenantID}
	argIdx := 2

	if filter.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Search != "" {
		whereClause += fmt.Sprintf(" AND (customer_name ILIKE $%d OR customer_email ILIKE $%d OR quote_number ILIKE $%d)", argIdx, argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM quotes WHERE %s`, whereClause)
	if err := q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count quotes: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM quotes
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, quoteColumns, whereClause, argIdx, argIdx+1)
	args = append(args, pagination.Limit(), pagination.Offset())

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*entity.Quote
	for rows.Next() {
		quote, err := scanQuoteFromRows(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return repository.NewPagedResult(quotes, total, pagination), nil
}

// UpdateStatus 状态迁移，from 不匹配时不更新任何行
func (r *QuoteRepository) UpdateStatus(ctx context.Context, tenantID, id string, from, to entity.QuoteStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.UpdateStatus")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = $4
	`
	result, err := q.ExecContext(ctx, query, to, tenantID, id, from)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update quote status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return errors.ErrInvalidTransition.WithDetail(fmt.Sprintf("%s -> %s", from, to))
	}
	return nil
}

// UpdateTotals 重新写入金额汇总字段
func (r *QuoteRepository) UpdateTotals(ctx context.Context, quote *entity.Quote) error {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.UpdateTotals")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `
		UPDATE quotes
		SET total_volume = $1, total_labor_hours = $2, subtotal = $3, tax = $4, total = $5,
			pricing_rule_id = $6, updated_at = NOW()
		WHERE tenant_id = $7 AND id = $8
	`
	if _, err := q.ExecContext(ctx, query,
		quote.TotalVolume, quote.TotalLaborHours, quote.Subtotal, quote.Tax, quote.Total,
		nullString(quote.PricingRuleID), quote.TenantID, quote.ID,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update quote totals: %w", err)
	}
	return nil
}

// AddItem 追加行项
func (r *QuoteRepository) AddItem(ctx context.Context, tenantID string, item *entity.QuoteItem) error {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.AddItem")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	// 行项通过所属报价间接校验租户归属
	var owner string
	err := q.QueryRowContext(ctx,
		`SELECT tenant_id FROM quotes WHERE tenant_id = $1 AND id = $2`, tenantID, item.QuoteID,
	).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.ErrQuoteNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("failed to verify quote ownership: %w", err)
	}

	return r.insertItem(ctx, q, item)
}

// RemoveItem 删除行项
func (r *QuoteRepository) RemoveItem(ctx context.Context, tenantID, quoteID, itemID string) error {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.RemoveItem")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `
		DELETE FROM quote_items
		WHERE id = $1 AND quote_id IN (SELECT id FROM quotes WHERE tenant_id = $2 AND id = $3)
	`
	if _, err := q.ExecContext(ctx, query, itemID, tenantID, quoteID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to remove quote item: %w", err)
	}
	return nil
}

// NextSequence 取下一个报价编号序号（按租户和月份递增）
func (r *QuoteRepository) NextSequence(ctx context.Context, tenantID string, month time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.NextSequence")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	query := `
		INSERT INTO quote_sequences (tenant_id, month, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, month) DO UPDATE SET seq = quote_sequences.seq + 1
		RETURNING seq
	`
	var seq int64
	if err := q.QueryRowContext(ctx, query, tenantID, monthStart).Scan(&seq); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get next quote sequence: %w", err)
	}
	return seq, nil
}

// ExpireStale 将超过有效期的 pending/approved 报价置为 expired
func (r *QuoteRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuoteRepository.ExpireStale")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `
		UPDATE quotes SET status = 'expired', updated_at = NOW()
		WHERE status IN ('pending', 'approved') AND expires_at IS NOT NULL AND expires_at < $1
	`
	result, err := q.ExecContext(ctx, query, now)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to expire stale quotes: %w", err)
	}
	return result.RowsAffected()
}

// insertItem 插入单个行项
func (r *QuoteRepository) insertItem(ctx context.Context, q Querier, item *entity.QuoteItem) error {
	query := `
		INSERT INTO quote_items (id, quote_id, catalog_entry_id, raw_label, quantity, volume, labor_hours, confidence, needs_review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	var catalogID sql.NullString
	if item.CatalogEntryID != nil {
		catalogID = sql.NullString{String: *item.CatalogEntryID, Valid: true}
	}
	var confidence sql.NullFloat64
	if item.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *item.Confidence, Valid: true}
	}

	err := q.QueryRowContext(ctx, query,
		item.ID, item.QuoteID, catalogID, item.RawLabel, item.Quantity,
		item.Volume, item.LaborHours, confidence, item.NeedsReview,
	).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert quote item: %w", err)
	}
	return nil
}

// loadItems 加载报价行项
func (r *QuoteRepository) loadItems(ctx context.Context, q Querier, quote *entity.Quote) error {
	query := fmt.Sprintf(`
		SELECT %s FROM quote_items
		WHERE quote_id = $1
		ORDER BY created_at ASC, id ASC
	`, quoteItemColumns)

	rows, err := q.QueryContext(ctx, query, quote.ID)
	if err != nil {
		return fmt.Errorf("failed to load quote items: %w", err)
	}
	defer rows.Close()

	var items []entity.QuoteItem
	for rows.Next() {
		var item entity.QuoteItem
		var catalogID sql.NullString
		var confidence sql.NullFloat64

		if err := rows.Scan(
			&item.ID, &item.QuoteID, &catalogID, &item.RawLabel, &item.Quantity,
			&item.Volume, &item.LaborHours, &confidence, &item.NeedsReview, &item.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan quote item: %w", err)
		}

		if catalogID.Valid {
			id := catalogID.String
			item.CatalogEntryID = &id
		}
		if confidence.Valid {
			c := confidence.Float64
			item.Confidence = &c
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate quote items: %w", err)
	}
	quote.Items = items
	return nil
}

func scanQuoteRow(row rowScanner) (*entity.Quote, error) {
	var quote entity.Quote
	var customerPhone, pickupAddr, deliveryAddr, notes, ruleID sql.NullString
	var moveDate, expiresAt sql.NullTime

	err := row.Scan(
		&quote.ID, &quote.TenantID, &quote.QuoteNumber, &quote.Status,
		&quote.CustomerName, &quote.CustomerEmail, &customerPhone,
		&pickupAddr, &deliveryAddr, &moveDate, &notes,
		&quote.TotalVolume, &quote.TotalLaborHours, &quote.Subtotal, &quote.Tax, &quote.Total,
		&ruleID, &expiresAt, &quote.CreatedAt, &quote.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if customerPhone.Valid {
		quote.CustomerPhone = customerPhone.String
	}
	if pickupAddr.Valid {
		quote.PickupAddress = pickupAddr.String
	}
	if deliveryAddr.Valid {
		quote.DeliveryAddress = deliveryAddr.String
	}
	if notes.Valid {
		quote.Notes = notes.String
	}
	if ruleID.Valid {
		quote.PricingRuleID = ruleID.String
	}
	if moveDate.Valid {
		quote.MoveDate = &moveDate.Time
	}
	if expiresAt.Valid {
		quote.ExpiresAt = &expiresAt.Time
	}
	return &quote, nil
}

// scanQuote 扫描单行报价数据
func scanQuote(row *sql.Row) (*entity.Quote, error) {
	quote, err := scanQuoteRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan quote: %w", err)
	}
	return quote, nil
}

// scanQuoteFromRows 从多行结果扫描
func scanQuoteFromRows(rows *sql.Rows) (*entity.Quote, error) {
	quote, err := scanQuoteRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan quote row: %w", err)
	}
	return quote, nil
}
