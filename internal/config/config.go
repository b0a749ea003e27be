// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Detection     DetectionConfig     `yaml:"detection" mapstructure:"detection"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Quote         QuoteConfig         `yaml:"quote" mapstructure:"quote"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis     RedisConfig   `yaml:"redis" mapstructure:"redis"`
	TenantTTL time.Duration `yaml:"tenant_ttl" mapstructure:"tenant_ttl"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// DetectionConfig 识别服务配置
type DetectionConfig struct {
	// Endpoint 识别服务地址（YOLOE sidecar）
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Timeout 单次识别调用超时
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// MessagingConfig 检测任务队列配置（Redis Streams）
type MessagingConfig struct {
	Stream        string        `yaml:"stream" mapstructure:"stream"`
	ConsumerGroup string        `yaml:"consumer_group" mapstructure:"consumer_group"`
	Consumer      string        `yaml:"consumer" mapstructure:"consumer"`
	BlockTimeout  time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	MaxLen        int64         `yaml:"max_len" mapstructure:"max_len"`
}

// QuoteConfig 报价流程配置
type QuoteConfig struct {
	// ExpiryDays 报价有效天数
	ExpiryDays int `yaml:"expiry_days" mapstructure:"expiry_days"`
	// SweepInterval 过期扫描周期
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	// DefaultDetectionThreshold 租户未配置时的识别置信度阈值
	DefaultDetectionThreshold float64 `yaml:"default_detection_threshold" mapstructure:"default_detection_threshold"`
	// DefaultUnknownItemVolume 未匹配目录项的保守体积估计（立方英尺）
	DefaultUnknownItemVolume string `yaml:"default_unknown_item_volume" mapstructure:"default_unknown_item_volume"`
	// DefaultUnknownItemLaborHours 未匹配目录项的保守工时估计
	DefaultUnknownItemLaborHours string `yaml:"default_unknown_item_labor_hours" mapstructure:"default_unknown_item_labor_hours"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret            string        `yaml:"secret" mapstructure:"secret"`
	Issuer            string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration        time.Duration `yaml:"expiration" mapstructure:"expiration"`
	RefreshExpiration time.Duration `yaml:"refresh_expiration" mapstructure:"refresh_expiration"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// RateLimitConfig 限流配置（租户未单独配置时的默认值）
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// WindowSeconds 固定窗口长度（秒）
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds"`
	// PublicMaxRequests 公开提交端点按租户的全局上限
	PublicMaxRequests int `yaml:"public_max_requests" mapstructure:"public_max_requests"`
	// PublicMaxPerOrigin 公开提交端点按来源的上限
	PublicMaxPerOrigin int `yaml:"public_max_per_origin" mapstructure:"public_max_per_origin"`
	// StaffMaxRequests 认证端点按租户的全局上限
	StaffMaxRequests int `yaml:"staff_max_requests" mapstructure:"staff_max_requests"`
	// StaffMaxPerOrigin 认证端点按来源的上限
	StaffMaxPerOrigin int `yaml:"staff_max_per_origin" mapstructure:"staff_max_per_origin"`
	// KeyPrefix Redis Key 前缀
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}
