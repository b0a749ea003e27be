package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/internal/domain/entity"
	"movecrm-api/pkg/utils"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role entity.UserRole
		perm Permission
		want bool
	}{
		{entity.UserRoleAdmin, PermQuoteReview, true},
		{entity.UserRoleAdmin, PermPricingManage, true},
		{entity.UserRoleAdmin, PermTenantManage, true},
		{entity.UserRoleStaff, PermQuoteReview, true},
		{entity.UserRoleStaff, PermQuoteWrite, true},
		{entity.UserRoleStaff, PermCatalogManage, true},
		{entity.UserRoleStaff, PermPricingManage, false},
		{entity.UserRoleStaff, PermTenantManage, false},
		{entity.UserRoleCustomer, PermQuoteRead, true},
		{entity.UserRoleCustomer, PermQuoteReview, false},
		{entity.UserRoleCustomer, PermQuoteWrite, false},
		{entity.UserRoleCustomer, PermCatalogManage, false},
		{entity.UserRole("ghost"), PermQuoteRead, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPermission(tt.role, tt.perm),
			"role=%s perm=%s", tt.role, tt.perm)
	}
}

func reviewRouter(role string) *gin.Engine {
	r := gin.New()
	if role != "" {
		r.Use(func(c *gin.Context) {
			c.Set("role", role)
		})
	}
	r.POST("/quotes/:qid/approve",
		RequirePermission(PermQuoteReview),
		func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	return r
}

func TestRequirePermissionAllowsReviewer(t *testing.T) {
	for _, role := range []string{"admin", "staff"} {
		w := httptest.NewRecorder()
		reviewRouter(role).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/quotes/q1/approve", nil))
		assert.Equal(t, http.StatusOK, w.Code, "role=%s", role)
	}
}

func TestRequirePermissionRejectsCustomer(t *testing.T) {
	w := httptest.NewRecorder()
	reviewRouter("customer").ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/quotes/q1/approve", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePermissionRejectsMissingRole(t *testing.T) {
	w := httptest.NewRecorder()
	reviewRouter("").ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/quotes/q1/approve", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// 持有 customer 角色令牌的用户通过认证后仍然不能审核报价
func TestCustomerTokenCannotApprove(t *testing.T) {
	m := utils.NewJWTManager(testSecret, testIssuer)
	pair, err := m.GenerateTokenPair("tenant-1", "user-9", "customer", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Auth(AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: true}))
	r.POST("/v1/quotes/:qid/approve",
		RequirePermission(PermQuoteReview),
		func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

	req := httptest.NewRequest(http.MethodPost, "/v1/quotes/q1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("role", "staff")
	})
	r.GET("/admin-only", RequireRole(entity.UserRoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/staff-ok", RequireRole(entity.UserRoleAdmin, entity.UserRoleStaff), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin-only", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff-ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
