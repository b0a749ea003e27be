// Package detectionflow 提供异步识别任务的入队与消费处理
package detectionflow

import (
	"context"

	"github.com/google/uuid"

	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/quoteflow"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/infrastructure/messaging"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
	"movecrm-api/pkg/metrics"
)

// Detector 识别服务客户端接口
type Detector interface {
	Detect(ctx context.Context, mediaURLs []string, prompt string) ([]entity.DetectionResult, error)
}

// Publisher 检测任务发布接口
type Publisher interface {
	PublishDetectionJob(ctx context.Context, job *messaging.DetectionJobMessage) (string, error)
}

// Pipeline 检测任务流水线
// Enqueue 由 API 侧调用，Process 由 detection-worker 消费执行
type Pipeline struct {
	guard     *guard.Guard
	detector  Detector
	publisher Publisher
	jobs      repository.DetectionJobRepository
	quotes    repository.QuoteRepository
	assembler *quoteflow.Assembler
}

// NewPipeline 创建检测任务流水线
func NewPipeline(
	g *guard.Guard,
	detector Detector,
	publisher Publisher,
	jobs repository.DetectionJobRepository,
	quotes repository.QuoteRepository,
	assembler *quoteflow.Assembler,
) *Pipeline {
	return &Pipeline{
		guard:     g,
		detector:  detector,
		publisher: publisher,
		jobs:      jobs,
		quotes:    quotes,
		assembler: assembler,
	}
}

// Enqueue 创建检测任务并发布到队列
// 只允许为 pending 状态的报价追加识别结果
func (p *Pipeline) Enqueue(ctx context.Context, tc *guard.TenantContext, quoteID string, mediaURLs []string, prompt string) (*entity.DetectionJob, error) {
	quote, err := p.quotes.GetByID(ctx, tc.TenantID(), quoteID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load quote")
	}
	if quote == nil {
		return nil, errors.ErrQuoteNotFound
	}
	if quote.Status != entity.QuoteStatusPending {
		return nil, errors.ErrInvalidTransition.WithDetail("quote is " + string(quote.Status))
	}

	job := entity.NewDetectionJob(tc.TenantID(), quoteID, mediaURLs, prompt)
	job.ID = uuid.NewString()
	if err := p.jobs.Create(ctx, job); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create detection job")
	}

	_, err = p.publisher.PublishDetectionJob(ctx, &messaging.DetectionJobMessage{
		JobID:      job.ID,
		TenantID:   tc.TenantID(),
		TenantSlug: tc.Slug(),
		QuoteID:    quoteID,
		MediaURLs:  mediaURLs,
		Prompt:     prompt,
	})
	if err != nil {
		_ = p.jobs.Fail(ctx, tc.TenantID(), job.ID, "failed to enqueue job")
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to enqueue detection job")
	}

	logger.Info(ctx, "detection job enqueued",
		"job_id", job.ID, "quote_id", quoteID, "media_count", len(mediaURLs))
	return job, nil
}

// Process 消费单条检测任务消息
// 返回 error 时消息留在 pending 列表按退避重试
func (p *Pipeline) Process(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.DetectionJobMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		logger.Error(ctx, "invalid detection job payload", err, "message_id", msg.ID)
		metrics.DetectionJobsProcessed.WithLabelValues("invalid").Inc()
		return nil
	}

	tc, err := p.guard.ResolvePublic(ctx, payload.TenantSlug)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.CodeTenantResolutionFailed {
			return err
		}
		// 租户不存在或已停用，任务不可重试
		_ = p.jobs.Fail(ctx, payload.TenantID, payload.JobID, "tenant unavailable")
		metrics.DetectionJobsProcessed.WithLabelValues("failed").Inc()
		return nil
	}

	if err := p.jobs.UpdateStatus(ctx, tc.TenantID(), payload.JobID, entity.DetectionJobStatusProcessing); err != nil {
		return err
	}

	results, err := p.detector.Detect(ctx, payload.MediaURLs, payload.Prompt)
	if err != nil {
		_ = p.jobs.Fail(ctx, tc.TenantID(), payload.JobID, err.Error())
		metrics.DetectionJobsProcessed.WithLabelValues("failed").Inc()
		return err
	}

	if err := p.jobs.Complete(ctx, tc.TenantID(), payload.JobID, results); err != nil {
		return err
	}

	detected := make([]entity.DetectedItem, 0, len(results))
	for i := range results {
		confidence := results[i].Confidence
		detected = append(detected, entity.DetectedItem{
			RawLabel:   results[i].Name,
			Confidence: &confidence,
			Quantity:   1,
		})
	}

	if len(detected) > 0 {
		if _, err := p.assembler.AppendItems(ctx, tc, payload.QuoteID, detected); err != nil {
			appErr, ok := errors.AsAppError(err)
			if ok && (appErr.Code == errors.CodeInvalidTransition || appErr.Code == errors.CodeQuoteNotFound) {
				// 报价在任务处理期间已流转或删除，识别结果保留在任务记录里
				logger.Warn(ctx, "skip appending detection results",
					"job_id", payload.JobID, "quote_id", payload.QuoteID, "reason", appErr.Message)
			} else {
				return err
			}
		}
	}

	metrics.DetectionJobsProcessed.WithLabelValues("completed").Inc()
	logger.Info(ctx, "detection job completed",
		"job_id", payload.JobID, "quote_id", payload.QuoteID, "result_count", len(results))
	return nil
}
