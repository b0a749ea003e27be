// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"movecrm-api/internal/domain/entity"
)

// DetectionJobRepository 检测任务仓储实现
type DetectionJobRepository struct {
	client *Client
}

// NewDetectionJobRepository 创建检测任务仓储
func NewDetectionJobRepository(client *Client) *DetectionJobRepository {
	return &DetectionJobRepository{client: client}
}

const detectionJobColumns = `id, tenant_id, quote_id, media_urls, prompt, status, results, error_message, created_at, completed_at`

// Create 创建检测任务
func (r *DetectionJobRepository) Create(ctx context.Context, job *entity.DetectionJob) error {
	ctx, span := tracer.Start(ctx, "postgres.DetectionJobRepository.Create")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	query := `
		INSERT INTO detection_jobs (id, tenant_id, quote_id, media_urls, prompt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := q.QueryRowContext(ctx, query,
		job.ID, job.TenantID, job.QuoteID, pq.Array(job.MediaURLs), nullString(job.Prompt), job.Status,
	).Scan(&job.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create detection job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取检测任务
func (r *DetectionJobRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.DetectionJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.DetectionJobRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`SELECT %s FROM detection_jobs WHERE tenant_id = $1 AND id = $2`, detectionJobColumns)

	job, err := scanDetectionJobRow(q.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get detection job: %w", err)
	}
	return job, nil
}

// UpdateStatus 更新任务状态
func (r *DetectionJobRepository) UpdateStatus(ctx context.Context, tenantID, id string, status entity.DetectionJobStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.DetectionJobRepository.UpdateStatus")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `UPDATE detection_jobs SET status = $1 WHERE tenant_id = $2 AND id = $3`
	if _, err := q.ExecContext(ctx, query, status, tenantID, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update detection job status: %w", err)
	}
	return nil
}

// Complete 写入识别结果并置为完成
func (r *DetectionJobRepository) Complete(ctx context.Context, tenantID, id string, results []entity.DetectionResult) error {
	ctx, span := tracer.Start(ctx, "postgres.DetectionJobRepository.Complete")
	defer span.End()

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal detection results: %w", err)
	}

	q := getQuerier(ctx, r.client.db)
	query := `
		UPDATE detection_jobs
		SET status = 'completed', results = $1, error_message = NULL, completed_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	if _, err := q.ExecContext(ctx, query, resultsJSON, tenantID, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to complete detection job: %w", err)
	}
	return nil
}

// Fail 写入错误信息并置为失败
func (r *DetectionJobRepository) Fail(ctx context.Context, tenantID, id string, errMsg string) error {
	ctx, span := tracer.Start(ctx, "postgres.DetectionJobRepository.Fail")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := `
		UPDATE detection_jobs
		SET status = 'failed', error_message = $1, completed_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	if _, err := q.ExecContext(ctx, query, errMsg, tenantID, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark detection job failed: %w", err)
	}
	return nil
}

// ListByQuote 获取报价关联的检测任务
func (r *DetectionJobRepository) ListByQuote(ctx context.Context, tenantID, quoteID string) ([]*entity.DetectionJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.DetectionJobRepository.ListByQuote")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	query := fmt.Sprintf(`
		SELECT %s FROM detection_jobs
		WHERE tenant_id = $1 AND quote_id = $2
		ORDER BY created_at DESC
	`, detectionJobColumns)

	rows, err := q.QueryContext(ctx, query, tenantID, quoteID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list detection jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.DetectionJob
	for rows.Next() {
		job, err := scanDetectionJobRow(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan detection job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate detection jobs: %w", err)
	}
	return jobs, nil
}

func scanDetectionJobRow(row rowScanner) (*entity.DetectionJob, error) {
	var job entity.DetectionJob
	var prompt, errMsg sql.NullString
	var resultsJSON []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.TenantID, &job.QuoteID, pq.Array(&job.MediaURLs), &prompt,
		&job.Status, &resultsJSON, &errMsg, &job.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if prompt.Valid {
		job.Prompt = prompt.String
	}
	if errMsg.Valid {
		job.ErrorMessage = errMsg.String
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &job.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detection results: %w", err)
		}
	}
	return &job, nil
}
