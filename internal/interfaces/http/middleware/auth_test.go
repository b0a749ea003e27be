package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/pkg/utils"
)

const (
	testSecret = "test-secret-key"
	testIssuer = "movecrm-test"
)

func authRouter(t *testing.T, cfg AuthConfig) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(Auth(cfg))
	r.GET("/v1/quotes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"claim_tenant_id": c.GetString("claim_tenant_id"),
			"user_id":         c.GetString("user_id"),
			"role":            c.GetString("role"),
		})
	})
	r.GET("/public/quote", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func issueTokenPair(t *testing.T) *utils.TokenPair {
	t.Helper()
	m := utils.NewJWTManager(testSecret, testIssuer)
	pair, err := m.GenerateTokenPair("tenant-1", "user-1", "staff", 15*time.Minute, 168*time.Hour)
	require.NoError(t, err)
	return pair
}

func TestAuthAcceptsAccessToken(t *testing.T) {
	r := authRouter(t, AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: true})
	pair := issueTokenPair(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"claim_tenant_id":"tenant-1"`)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
	assert.Contains(t, w.Body.String(), `"role":"staff"`)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	r := authRouter(t, AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/quotes", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	r := authRouter(t, AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/v1/quotes", nil)
	req.Header.Set("Authorization", "Token abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// 刷新令牌不能当访问令牌用
func TestAuthRejectsRefreshTokenType(t *testing.T) {
	r := authRouter(t, AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: true})
	pair := issueTokenPair(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	r := authRouter(t, AuthConfig{Secret: "another-secret", Issuer: testIssuer, Enabled: true})
	pair := issueTokenPair(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthSkipsConfiguredPaths(t *testing.T) {
	r := authRouter(t, AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public/quote", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	r := authRouter(t, AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: false})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/quotes", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
