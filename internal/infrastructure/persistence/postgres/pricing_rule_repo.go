// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"movecrm-api/internal/domain/entity"
)

// PricingRuleRepository 计价规则仓储实现
type PricingRuleRepository struct {
	client *Client
}

// NewPricingRuleRepository 创建计价规则仓储
func NewPricingRuleRepository(client *Client) *PricingRuleRepository {
	return &PricingRuleRepository{client: client}
}

const pricingRuleColumns = `id, tenant_id, name, rate_per_volume_unit, labor_rate_per_hour, minimum_charge, tax_rate, is_default, is_active, created_at, updated_at`

// Create 创建计价规则
func (r *PricingRuleRepository) Create(ctx context.Context, rule *entity.PricingRule) error {
	ctx, span := tracer.Start(ctx, "postgres.PricingRuleRepository.Create")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	query := `
		INSERT INTO pricing_rules (id, tenant_id, name, rate_per_volume_unit, labor_rate_per_hour, minimum_charge, tax_rate, is_default, is_active, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query,
		rule.TenantID, rule.Name, rule.RatePerVolumeUnit, rule.LaborRatePerHour,
		rule.MinimumCharge, rule.TaxRate, rule.IsDefault, rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create pricing rule: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取计价规则
func (r *PricingRuleRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.PricingRule, error) {
	ctx, span := tracer.Start(ctx, "postgres.PricingRuleRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`SELECT %s FROM pricing_rules WHERE tenant_id = $1 AND id = $2`, pricingRuleColumns)
	return scanPricingRule(q.QueryRowContext(ctx, query, tenantID, id))
}

// Update 更新计价规则
func (r *PricingRuleRepository) Update(ctx context.Context, rule *entity.PricingRule) error {
	ctx, span := tracer.Start(ctx, "postgres.PricingRuleRepository.Update")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `
		UPDATE pricing_rules
		SET name = $1, rate_per_volume_unit = $2, labor_rate_per_hour = $3, minimum_charge = $4,
			tax_rate = $5, is_default = $6, is_active = $7, updated_at = NOW()
		WHERE tenant_id = $8 AND id = $9
	`
	if _, err := q.ExecContext(ctx, query,
		rule.Name, rule.RatePerVolumeUnit, rule.LaborRatePerHour, rule.MinimumCharge,
		rule.TaxRate, rule.IsDefault, rule.IsActive, rule.TenantID, rule.ID,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update pricing rule: %w", err)
	}
	return nil
}

// ListByTenant 获取租户全部计价规则
func (r *PricingRuleRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entity.PricingRule, error) {
	ctx, span := tracer.Start(ctx, "postgres.PricingRuleRepository.ListByTenant")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`
		SELECT %s FROM pricing_rules
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, pricingRuleColumns)

	return r.queryRules(ctx, q, query, tenantID)
}

// ListActiveDefaults 获取租户活跃的默认规则
func (r *PricingRuleRepository) ListActiveDefaults(ctx context.Context, tenantID string) ([]*entity.PricingRule, error) {
	ctx, span := tracer.Start(ctx, "postgres.PricingRuleRepository.ListActiveDefaults")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`
		SELECT %s FROM pricing_rules
		WHERE tenant_id = $1 AND is_default = TRUE AND is_active = TRUE
		ORDER BY id ASC
	`, pricingRuleColumns)

	return r.queryRules(ctx, q, query, tenantID)
}

// queryRules 通用查询计价规则
func (r *PricingRuleRepository) queryRules(ctx context.Context, q Querier, query string, args ...interface{}) ([]*entity.PricingRule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.PricingRule
	for rows.Next() {
		rule, err := scanPricingRuleFromRows(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pricing rules: %w", err)
	}
	return rules, nil
}

func scanPricingRuleRow(row rowScanner) (*entity.PricingRule, error) {
	var rule entity.PricingRule
	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name,
		&rule.RatePerVolumeUnit, &rule.LaborRatePerHour, &rule.MinimumCharge, &rule.TaxRate,
		&rule.IsDefault, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// scanPricingRule 扫描单行计价规则数据
func scanPricingRule(row *sql.Row) (*entity.PricingRule, error) {
	rule, err := scanPricingRuleRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan pricing rule: %w", err)
	}
	return rule, nil
}

// scanPricingRuleFromRows 从多行结果扫描
func scanPricingRuleFromRows(rows *sql.Rows) (*entity.PricingRule, error) {
	rule, err := scanPricingRuleRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pricing rule row: %w", err)
	}
	return rule, nil
}
