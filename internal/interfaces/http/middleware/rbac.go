// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"

	"movecrm-api/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// Permission 权限类型
type Permission string

// 权限常量定义
const (
	PermQuoteRead     Permission = "quote:read"
	PermQuoteWrite    Permission = "quote:write"
	PermQuoteReview   Permission = "quote:review"
	PermCatalogManage Permission = "catalog:manage"
	PermPricingManage Permission = "pricing:manage"
	PermTenantManage  Permission = "tenant:manage"
	PermDetectionRun  Permission = "detection:run"
)

// rolePermissions 角色-权限映射表
var rolePermissions = map[entity.UserRole][]Permission{
	entity.UserRoleAdmin: {
		PermQuoteRead, PermQuoteWrite, PermQuoteReview,
		PermCatalogManage, PermPricingManage, PermTenantManage, PermDetectionRun,
	},
	entity.UserRoleStaff: {
		PermQuoteRead, PermQuoteWrite, PermQuoteReview,
		PermCatalogManage, PermDetectionRun,
	},
	entity.UserRoleCustomer: {
		PermQuoteRead,
	},
}

// HasPermission 检查角色是否具有指定权限
// 审核与管理权限的语义定义在用户实体上，其余按角色-权限表判定
func HasPermission(role entity.UserRole, perm Permission) bool {
	user := entity.User{Role: role}
	switch perm {
	case PermQuoteReview:
		return user.CanReview()
	case PermPricingManage, PermTenantManage:
		return user.IsAdmin()
	}
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// RequirePermission 权限检查中间件
// 在 Auth 之后执行，角色取自 JWT 声明；不具备权限返回 403
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		if !HasPermission(entity.UserRole(roleStr), perm) {
			abortForbidden(c, "permission denied")
			return
		}

		c.Next()
	}
}

// RequireRole 角色检查中间件
// 检查当前用户是否为指定角色之一，否则返回 403
func RequireRole(roles ...entity.UserRole) gin.HandlerFunc {
	roleSet := make(map[entity.UserRole]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		if !roleSet[entity.UserRole(roleStr)] {
			abortForbidden(c, "role not allowed")
			return
		}

		c.Next()
	}
}

// abortForbidden 终止请求并返回 403
func abortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":     403,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
