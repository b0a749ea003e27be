// Package ratelimit 提供固定窗口限流能力
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"
	"movecrm-api/pkg/metrics"
)

// CounterStore 原子计数存储接口
// IncrementAndGet 对 key 自增 1 并返回自增后的值；首次创建时设置 ttl
type CounterStore interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limits 一次检查使用的限流参数
type Limits struct {
	// Window 固定窗口长度
	Window time.Duration
	// MaxRequests 租户全局上限（按 tenant+endpoint 计数），0 表示不限制
	MaxRequests int
	// MaxPerOrigin 来源上限（按 tenant+origin+endpoint 计数），0 表示不限制
	MaxPerOrigin int
}

// Decision 限流判定结果
type Decision struct {
	Allowed bool
	// RetryAfter 拒绝时距窗口边界的剩余时间
	RetryAfter time.Duration
}

// Limiter 固定窗口限流器
// 每次检查执行两级计数：租户全局与来源级；任一超限即拒绝。
// 计数存储不可用时选择拒绝请求（fail closed），避免隔离被绕过。
type Limiter struct {
	store     CounterStore
	keyPrefix string
	now       func() time.Time
}

// NewLimiter 创建限流器
func NewLimiter(store CounterStore, keyPrefix string) *Limiter {
	return &Limiter{
		store:     store,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Check 执行一次限流判定
// origin 为空时跳过来源级计数，仅做租户全局计数
func (l *Limiter) Check(ctx context.Context, tenantID, origin, endpoint string, limits Limits) (Decision, error) {
	now := l.now()
	window := limits.Window
	if window <= 0 {
		window = time.Minute
	}
	windowIdx := now.Unix() / int64(window/time.Second)
	remaining := time.Duration(windowIdx+1)*window - time.Duration(now.Unix())*time.Second

	var retryAfter time.Duration
	exceeded := false

	if limits.MaxRequests > 0 {
		key := fmt.Sprintf("%s:%s:%s:%d", l.keyPrefix, tenantID, endpoint, windowIdx)
		count, err := l.store.IncrementAndGet(ctx, key, window)
		if err != nil {
			metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "error").Inc()
			logger.Error(ctx, "rate limit counter store failed", err, "endpoint", endpoint)
			return Decision{}, errors.ErrServiceUnavailable.WithError(err)
		}
		if count > int64(limits.MaxRequests) {
			exceeded = true
			if remaining > retryAfter {
				retryAfter = remaining
			}
		}
	}

	if limits.MaxPerOrigin > 0 && origin != "" {
		key := fmt.Sprintf("%s:%s:%s:%s:%d", l.keyPrefix, tenantID, origin, endpoint, windowIdx)
		count, err := l.store.IncrementAndGet(ctx, key, window)
		if err != nil {
			metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "error").Inc()
			logger.Error(ctx, "rate limit counter store failed", err, "endpoint", endpoint)
			return Decision{}, errors.ErrServiceUnavailable.WithError(err)
		}
		if count > int64(limits.MaxPerOrigin) {
			exceeded = true
			if remaining > retryAfter {
				retryAfter = remaining
			}
		}
	}

	if exceeded {
		metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "denied").Inc()
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "allowed").Inc()
	return Decision{Allowed: true}, nil
}
