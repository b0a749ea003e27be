// Package redis 提供 Redis 计数器实现
package redis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Counter 固定窗口计数器
// 同一窗口键上 INCR 并在首次写入时设置过期，供限流器使用
type Counter struct {
	client *Client
}

// NewCounter 创建计数器
func NewCounter(client *Client) *Counter {
	return &Counter{client: client}
}

// IncrementAndGet 递增计数并返回递增后的值
func (c *Counter) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, span := tracer.Start(ctx, "counter.IncrementAndGet",
		trace.WithAttributes(
			attribute.String("counter.key", key),
			attribute.Int64("counter.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	pipe := c.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	// NX 保证过期时间只在窗口首个请求时设置
	pipe.ExpireNX(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	count := incrCmd.Val()
	span.SetAttributes(attribute.Int64("counter.count", count))
	return count, nil
}
