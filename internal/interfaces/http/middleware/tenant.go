// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"

	"movecrm-api/internal/application/guard"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// TenantSlugHeader 携带租户 Slug 的请求头
	TenantSlugHeader = "X-Tenant-Slug"
	// TenantContextKey Gin Context 中租户凭证的 Key
	TenantContextKey = "tenant_ctx"
)

// PublicTenant 公开请求租户解析中间件
// 仅凭 Slug 签发租户凭证；解析失败一律拒绝，不降级放行
func PublicTenant(g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := tenantSlug(c)
		if slug == "" {
			abortAppError(c, errors.ErrUnresolvedTenant)
			return
		}

		tc, err := g.ResolvePublic(c.Request.Context(), slug)
		if err != nil {
			abortAppError(c, err)
			return
		}

		injectTenant(c, tc)
		c.Next()
	}
}

// StaffTenant 员工请求租户解析中间件
// 在 Auth 之后执行，要求 Slug 解析结果与 JWT 声明的租户一致
func StaffTenant(g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := tenantSlug(c)
		if slug == "" {
			abortAppError(c, errors.ErrUnresolvedTenant)
			return
		}

		tc, err := g.ResolveStaff(c.Request.Context(), slug, c.GetString("claim_tenant_id"))
		if err != nil {
			abortAppError(c, err)
			return
		}

		injectTenant(c, tc)
		c.Next()
	}
}

// tenantSlug 从请求头或查询参数取租户 Slug
func tenantSlug(c *gin.Context) string {
	if slug := c.GetHeader(TenantSlugHeader); slug != "" {
		return slug
	}
	return c.Query("tenant")
}

// injectTenant 将租户凭证注入 Gin 与 Logger Context
func injectTenant(c *gin.Context, tc *guard.TenantContext) {
	c.Set(TenantContextKey, tc)
	c.Set("tenant_id", tc.TenantID())
	c.Set("tenant_slug", tc.Slug())

	ctx := logger.WithContext(c.Request.Context(), logger.TenantIDKey, tc.TenantID())
	c.Request = c.Request.WithContext(ctx)
}

// GetTenantContext 从 Gin Context 取租户凭证
func GetTenantContext(c *gin.Context) (*guard.TenantContext, bool) {
	v, ok := c.Get(TenantContextKey)
	if !ok {
		return nil, false
	}
	tc, ok := v.(*guard.TenantContext)
	return tc, ok
}

// abortAppError 终止请求并按业务错误码返回
func abortAppError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		if appErr.RetryAfter > 0 {
			c.Header("Retry-After", formatRetryAfter(appErr.RetryAfter))
		}
		c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
			"code":     appErr.HTTPStatus,
			"message":  appErr.Message,
			"trace_id": c.GetString("trace_id"),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"code":     500,
		"message":  "internal server error",
		"trace_id": c.GetString("trace_id"),
	})
}
