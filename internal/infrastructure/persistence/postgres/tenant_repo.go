// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
)

// TenantRepository 租户仓储实现
type TenantRepository struct {
	client *Client
}

// NewTenantRepository 创建租户仓储
func NewTenantRepository(client *Client) *TenantRepository {
	return &TenantRepository{client: client}
}

const tenantColumns = `id, name, slug, domain, branding, settings, limits, status, created_at, updated_at`

// Create 创建租户
func (r *TenantRepository) Create(ctx context.Context, tenant *entity.Tenant) error {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.Create")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	branding, settings, limits, err := marshalTenantJSON(tenant)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, name, slug, domain, branding, settings, limits, status, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err = q.QueryRowContext(ctx, query,
		tenant.Name, tenant.Slug, nullString(tenant.Domain), branding, settings, limits, tenant.Status,
	).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取租户
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1`, tenantColumns)
	return scanTenant(q.QueryRowContext(ctx, query, id))
}

// GetBySlug 根据 Slug 获取租户
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error) {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.GetBySlug")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE slug = $1`, tenantColumns)
	return scanTenant(q.QueryRowContext(ctx, query, slug))
}

// Update 更新租户
func (r *TenantRepository) Update(ctx context.Context, tenant *entity.Tenant) error {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.Update")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	branding, settings, limits, err := marshalTenantJSON(tenant)
	if err != nil {
		return err
	}

	query := `
		UPDATE tenants
		SET name = $1, domain = $2, branding = $3, settings = $4, limits = $5, status = $6, updated_at = NOW()
		WHERE id = $7
	`
	if _, err := q.ExecContext(ctx, query,
		tenant.Name, nullString(tenant.Domain), branding, settings, limits, tenant.Status, tenant.ID,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

// List 获取租户列表
func (r *TenantRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Tenant], error) {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.List")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count tenants: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, tenantColumns)

	rows, err := q.QueryContext(ctx, query, pagination.Limit(), pagination.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*entity.Tenant
	for rows.Next() {
		tenant, err := scanTenantFromRows(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return repository.NewPagedResult(tenants, total, pagination), nil
}

// UpdateStatus 更新租户状态
func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, status entity.TenantStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.UpdateStatus")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `UPDATE tenants SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := q.ExecContext(ctx, query, status, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update tenant status: %w", err)
	}
	return nil
}

// ExistsBySlug 检查 Slug 是否存在
func (r *TenantRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.ExistsBySlug")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	var count int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants WHERE slug = $1`, slug).Scan(&count); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check slug exists: %w", err)
	}
	return count > 0, nil
}

// marshalTenantJSON 序列化租户 JSONB 字段
func marshalTenantJSON(tenant *entity.Tenant) ([]byte, []byte, []byte, error) {
	branding, err := json.Marshal(tenant.Branding)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal branding: %w", err)
	}
	settings, err := json.Marshal(tenant.Settings)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	limits, err := json.Marshal(tenant.Limits)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal limits: %w", err)
	}
	return branding, settings, limits, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenantRow(row rowScanner) (*entity.Tenant, error) {
	var tenant entity.Tenant
	var domain sql.NullString
	var branding, settings, limits []byte

	err := row.Scan(
		&tenant.ID, &tenant.Name, &tenant.Slug, &domain,
		&branding, &settings, &limits, &tenant.Status,
		&tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if domain.Valid {
		tenant.Domain = domain.String
	}
	if len(branding) > 0 {
		if err := json.Unmarshal(branding, &tenant.Branding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal branding: %w", err)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &tenant.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &tenant.Limits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal limits: %w", err)
		}
	}
	return &tenant, nil
}

// scanTenant 扫描单行租户数据
func scanTenant(row *sql.Row) (*entity.Tenant, error) {
	tenant, err := scanTenantRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return tenant, nil
}

// scanTenantFromRows 从多行结果扫描
func scanTenantFromRows(rows *sql.Rows) (*entity.Tenant, error) {
	tenant, err := scanTenantRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant row: %w", err)
	}
	return tenant, nil
}

// nullString 空字符串转 NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
