// Package handler 提供 HTTP 请求处理器
package handler

import (
	"time"

	"movecrm-api/internal/config"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/dto"
	"movecrm-api/pkg/logger"
	"movecrm-api/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	jwtManager *utils.JWTManager
	cfg        config.JWTConfig
	userRepo   repository.UserRepository
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg config.JWTConfig, userRepo repository.UserRepository) *AuthHandler {
	return &AuthHandler{
		jwtManager: utils.NewJWTManager(cfg.Secret, cfg.Issuer),
		cfg:        cfg,
		userRepo:   userRepo,
	}
}

func (h *AuthHandler) accessTTL() time.Duration {
	if h.cfg.Expiration > 0 {
		return h.cfg.Expiration
	}
	return 15 * time.Minute
}

func (h *AuthHandler) refreshTTL() time.Duration {
	if h.cfg.RefreshExpiration > 0 {
		return h.cfg.RefreshExpiration
	}
	return 7 * 24 * time.Hour
}

// Login 登录
// 租户由 X-Tenant-Slug 解析，邮箱只在租户内查找
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user, err := h.userRepo.GetByEmail(ctx, tc.TenantID(), req.Email)
	if err != nil {
		logger.Error(ctx, "failed to query user", err, "email", req.Email)
		dto.InternalError(c, "login failed")
		return
	}
	// 用户不存在与密码错误返回同一错误，避免泄露账号存在性
	if user == nil || !user.IsActive || !user.CheckPassword(req.Password) {
		dto.Unauthorized(c, "invalid email or password")
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.TenantID, user.ID, string(user.Role), h.accessTTL(), h.refreshTTL())
	if err != nil {
		logger.Error(ctx, "failed to generate tokens", err, "user_id", user.ID)
		dto.InternalError(c, "login failed")
		return
	}

	if err := h.userRepo.UpdateLastLogin(ctx, user.TenantID, user.ID); err != nil {
		logger.Warn(ctx, "failed to update last login", "error", err.Error(), "user_id", user.ID)
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID)
	dto.Success(c, &dto.AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    int(h.accessTTL().Seconds()),
		User:         dto.ToAuthUserDTO(user),
	})
}

// Refresh 刷新令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()

	tc, ok := tenantContext(c)
	if !ok {
		return
	}

	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	claims, err := h.jwtManager.ParseToken(req.RefreshToken)
	if err != nil || claims.Type != "refresh" {
		dto.Unauthorized(c, "invalid refresh token")
		return
	}
	if claims.TenantID != tc.TenantID() {
		dto.Unauthorized(c, "invalid refresh token")
		return
	}

	user, err := h.userRepo.GetByID(ctx, claims.TenantID, claims.UserID)
	if err != nil {
		logger.Error(ctx, "failed to query user", err, "user_id", claims.UserID)
		dto.InternalError(c, "refresh failed")
		return
	}
	if user == nil || !user.IsActive {
		dto.Unauthorized(c, "invalid refresh token")
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.TenantID, user.ID, string(user.Role), h.accessTTL(), h.refreshTTL())
	if err != nil {
		logger.Error(ctx, "failed to generate tokens", err, "user_id", user.ID)
		dto.InternalError(c, "refresh failed")
		return
	}

	dto.Success(c, &dto.AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    int(h.accessTTL().Seconds()),
	})
}
