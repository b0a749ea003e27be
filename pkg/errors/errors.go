// Package errors 提供统一的错误定义
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeRateLimited        ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 认证授权错误 (2xxx)
	CodeTokenExpired     ErrorCode = "2001"
	CodeTokenInvalid     ErrorCode = "2002"
	CodeTokenMissing     ErrorCode = "2003"
	CodePermissionDenied ErrorCode = "2004"

	// 租户隔离错误 (3xxx)
	CodeUnresolvedTenant       ErrorCode = "3001"
	CodeUnknownTenant          ErrorCode = "3002"
	CodeTenantMismatch         ErrorCode = "3003"
	CodeTenantResolutionFailed ErrorCode = "3004"

	// 业务错误 (4xxx)
	CodeNoPricingRule        ErrorCode = "4001"
	CodeInvalidTransition    ErrorCode = "4002"
	CodeDetectionUnavailable ErrorCode = "4003"
	CodeQuoteNotFound        ErrorCode = "4004"
	CodeCatalogEntryNotFound ErrorCode = "4005"

	// 外部服务错误 (5xxx)
	CodeDatabaseError ErrorCode = "5001"
	CodeCacheError    ErrorCode = "5002"
	CodeCounterError  ErrorCode = "5003"
	CodeStorageError  ErrorCode = "5004"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	RetryAfter int       `json:"retry_after,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，支持 errors.Is 对预定义错误的匹配
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// WithRetryAfter 附加重试等待秒数（限流错误）
func (e *AppError) WithRetryAfter(seconds int) *AppError {
	clone := *e
	clone.RetryAfter = seconds
	return &clone
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeUnresolvedTenant:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid, CodeTokenMissing:
		return http.StatusUnauthorized
	case CodeForbidden, CodePermissionDenied:
		return http.StatusForbidden
	// 租户不存在与租户不匹配统一返回 404，避免租户枚举探测
	case CodeNotFound, CodeUnknownTenant, CodeTenantMismatch, CodeQuoteNotFound, CodeCatalogEntryNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition:
		return http.StatusConflict
	case CodeNoPricingRule:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable, CodeTenantResolutionFailed, CodeDetectionUnavailable, CodeCounterError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrRateLimited        = New(CodeRateLimited, "rate limit exceeded")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing = New(CodeTokenMissing, "token missing")

	ErrUnresolvedTenant       = New(CodeUnresolvedTenant, "tenant not specified")
	ErrUnknownTenant          = New(CodeUnknownTenant, "tenant not found")
	ErrTenantMismatch         = New(CodeTenantMismatch, "tenant not found")
	ErrTenantResolutionFailed = New(CodeTenantResolutionFailed, "tenant resolution failed")

	ErrNoPricingRule        = New(CodeNoPricingRule, "no active pricing rule configured")
	ErrInvalidTransition    = New(CodeInvalidTransition, "invalid quote status transition")
	ErrDetectionUnavailable = New(CodeDetectionUnavailable, "detection service unavailable")
	ErrQuoteNotFound        = New(CodeQuoteNotFound, "quote not found")
	ErrCatalogEntryNotFound = New(CodeCatalogEntryNotFound, "catalog entry not found")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError 将错误转换为 AppError，非 AppError 时 ok 为 false
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}
