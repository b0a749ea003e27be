// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/internal/interfaces/http/middleware"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// tenantContext 取请求的租户凭证，缺失时直接响应 500
// 路由保证租户中间件先于处理器执行，缺失属于接线错误
func tenantContext(c *gin.Context) (*guard.TenantContext, bool) {
	tc, ok := middleware.GetTenantContext(c)
	if !ok {
		dto.InternalError(c, "tenant context missing")
		return nil, false
	}
	return tc, true
}

// respondError 按业务错误码映射 HTTP 响应
func respondError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		logger.Error(c.Request.Context(), "unhandled error", err, "path", c.Request.URL.Path)
		dto.InternalError(c, "internal server error")
		return
	}

	detail := &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	}
	if appErr.RetryAfter > 0 {
		detail.RetryAfter = appErr.RetryAfter
		c.Header("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}

	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), "request failed", appErr, "path", c.Request.URL.Path)
	}

	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
}
