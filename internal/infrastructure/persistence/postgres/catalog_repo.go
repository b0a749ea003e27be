// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
)

// CatalogRepository 物品目录仓储实现
type CatalogRepository struct {
	client *Client
}

// NewCatalogRepository 创建物品目录仓储
func NewCatalogRepository(client *Client) *CatalogRepository {
	return &CatalogRepository{client: client}
}

const catalogColumns = `id, tenant_id, name, aliases, category, base_volume, labor_multiplier, is_active, created_at, updated_at`

// Create 创建目录条目
func (r *CatalogRepository) Create(ctx context.Context, entry *entity.ItemCatalogEntry) error {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.Create")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	query := `
		INSERT INTO item_catalog (id, tenant_id, name, aliases, category, base_volume, labor_multiplier, is_active, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query,
		entry.TenantID, entry.Name, pq.Array(entry.Aliases), nullString(entry.Category),
		entry.BaseVolume, entry.LaborMultiplier, entry.IsActive,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create catalog entry: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取目录条目
func (r *CatalogRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.ItemCatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`SELECT %s FROM item_catalog WHERE tenant_id = $1 AND id = $2`, catalogColumns)
	return scanCatalogEntry(q.QueryRowContext(ctx, query, tenantID, id))
}

// Update 更新目录条目
func (r *CatalogRepository) Update(ctx context.Context, entry *entity.ItemCatalogEntry) error {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.Update")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `
		UPDATE item_catalog
		SET name = $1, aliases = $2, category = $3, base_volume = $4, labor_multiplier = $5, is_active = $6, updated_at = NOW()
		WHERE tenant_id = $7 AND id = $8
	`
	if _, err := q.ExecContext(ctx, query,
		entry.Name, pq.Array(entry.Aliases), nullString(entry.Category),
		entry.BaseVolume, entry.LaborMultiplier, entry.IsActive,
		entry.TenantID, entry.ID,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update catalog entry: %w", err)
	}
	return nil
}

// Delete 删除目录条目（软删除）
func (r *CatalogRepository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.Delete")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `UPDATE item_catalog SET is_active = FALSE, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`
	if _, err := q.ExecContext(ctx, query, tenantID, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}
	return nil
}

// ListActive 获取租户全部活跃目录条目
func (r *CatalogRepository) ListActive(ctx context.Context, tenantID string) ([]*entity.ItemCatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.ListActive")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`
		SELECT %s FROM item_catalog
		WHERE tenant_id = $1 AND is_active = TRUE
		ORDER BY name ASC
	`, catalogColumns)

	rows, err := q.QueryContext(ctx, query, tenantID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list active catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ItemCatalogEntry
	for rows.Next() {
		entry, err := scanCatalogEntryFromRows(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate catalog entries: %w", err)
	}
	return entries, nil
}

// List 分页获取租户目录条目
func (r *CatalogRepository) List(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ItemCatalogEntry], error) {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.List")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	var total int64
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_catalog WHERE tenant_id = $1`, tenantID,
	).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count catalog entries: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM item_catalog
		WHERE tenant_id = $1
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`, catalogColumns)

	rows, err := q.QueryContext(ctx, query, tenantID, pagination.Limit(), pagination.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ItemCatalogEntry
	for rows.Next() {
		entry, err := scanCatalogEntryFromRows(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate catalog entries: %w", err)
	}

	return repository.NewPagedResult(entries, total, pagination), nil
}

func scanCatalogEntryRow(row rowScanner) (*entity.ItemCatalogEntry, error) {
	var entry entity.ItemCatalogEntry
	var aliases pq.StringArray
	var category sql.NullString

	err := row.Scan(
		&entry.ID, &entry.TenantID, &entry.Name, &aliases, &category,
		&entry.BaseVolume, &entry.LaborMultiplier, &entry.IsActive,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Aliases = aliases
	if category.Valid {
		entry.Category = category.String
	}
	return &entry, nil
}

// scanCatalogEntry 扫描单行目录数据
func scanCatalogEntry(row *sql.Row) (*entity.ItemCatalogEntry, error) {
	entry, err := scanCatalogEntryRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
	}
	return entry, nil
}

// scanCatalogEntryFromRows 从多行结果扫描
func scanCatalogEntryFromRows(rows *sql.Rows) (*entity.ItemCatalogEntry, error) {
	entry, err := scanCatalogEntryRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog entry row: %w", err)
	}
	return entry, nil
}
