// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"movecrm-api/internal/domain/entity"
)

// DetectionJobRepository 检测任务仓储接口
type DetectionJobRepository interface {
	// Create 创建检测任务
	Create(ctx context.Context, job *entity.DetectionJob) error

	// GetByID 根据 ID 获取检测任务
	GetByID(ctx context.Context, tenantID, id string) (*entity.DetectionJob, error)

	// UpdateStatus 更新任务状态
	UpdateStatus(ctx context.Context, tenantID, id string, status entity.DetectionJobStatus) error

	// Complete 写入识别结果并置为完成
	Complete(ctx context.Context, tenantID, id string, results []entity.DetectionResult) error

	// Fail 写入错误信息并置为失败
	Fail(ctx context.Context, tenantID, id string, errMsg string) error

	// ListByQuote 获取报价关联的检测任务
	ListByQuote(ctx context.Context, tenantID, quoteID string) ([]*entity.DetectionJob, error)
}
