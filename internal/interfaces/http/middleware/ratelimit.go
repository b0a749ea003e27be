// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"strconv"

	"movecrm-api/internal/application/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit 限流中间件
// 在租户解析之后执行，限额取自租户凭证；计数存储不可用时拒绝请求。
// 报价提交不走这里，提交路径的限流在组装器内部判定
func RateLimit(limiter *ratelimit.Limiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := GetTenantContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":     500,
				"message":  "tenant context missing",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		tenantLimits := tc.Limits()
		limits := ratelimit.Limits{
			Window:       tenantLimits.Window(),
			MaxRequests:  tenantLimits.PublicMaxRequests,
			MaxPerOrigin: tenantLimits.PublicMaxPerOrigin,
		}

		decision, err := limiter.Check(c.Request.Context(), tc.TenantID(), RequestOrigin(c), endpoint, limits)
		if err != nil {
			abortAppError(c, err)
			return
		}

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", formatRetryAfter(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     429,
				"message":  "rate limit exceeded",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

// RequestOrigin 取请求来源，挂件跨站请求携带 Origin 头
// 两个头都缺失时退回客户端 IP，直连客户端同样落在来源级计数上
func RequestOrigin(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin
	}
	if referer := c.GetHeader("Referer"); referer != "" {
		return referer
	}
	return c.ClientIP()
}

func formatRetryAfter(seconds int) string {
	return strconv.Itoa(seconds)
}
