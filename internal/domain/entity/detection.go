// Package entity 定义领域实体
package entity

import (
	"time"
)

// DetectedItem 识别出的单个物品（聚合前的临时结构）
type DetectedItem struct {
	// RawLabel 识别服务返回的原始标签
	RawLabel string `json:"raw_label"`
	// Confidence 识别置信度，nil 表示人工录入（跳过阈值过滤）
	Confidence *float64 `json:"confidence,omitempty"`
	Quantity   int      `json:"quantity"`
}

// DetectionJobStatus 检测任务状态
type DetectionJobStatus string

const (
	DetectionJobStatusPending    DetectionJobStatus = "pending"
	DetectionJobStatusProcessing DetectionJobStatus = "processing"
	DetectionJobStatusCompleted  DetectionJobStatus = "completed"
	DetectionJobStatusFailed     DetectionJobStatus = "failed"
)

// DetectionResult 识别服务返回的单条检测结果
type DetectionResult struct {
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// DetectionJob 异步检测任务
// 由 API 入队，detection-worker 消费并将聚合结果并入对应报价
type DetectionJob struct {
	ID           string             `json:"id"`
	TenantID     string             `json:"tenant_id"`
	QuoteID      string             `json:"quote_id"`
	MediaURLs    []string           `json:"media_urls"`
	Prompt       string             `json:"prompt,omitempty"`
	Status       DetectionJobStatus `json:"status"`
	Results      []DetectionResult  `json:"results,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// NewDetectionJob 创建检测任务
func NewDetectionJob(tenantID, quoteID string, mediaURLs []string, prompt string) *DetectionJob {
	return &DetectionJob{
		TenantID:  tenantID,
		QuoteID:   quoteID,
		MediaURLs: mediaURLs,
		Prompt:    prompt,
		Status:    DetectionJobStatusPending,
		CreatedAt: time.Now(),
	}
}
