// Package httpapi exposes the circuit breaker and its governance council
// over HTTP. Callers authenticate with an HS256 bearer token whose subject
// is the caller identity passed to every operation.
package httpapi

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config HTTP 服务配置
type Config struct {
	Enabled         bool               `mapstructure:"enabled"`
	Addr            string             `mapstructure:"addr"`
	Mode            string             `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration      `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration      `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration      `mapstructure:"shutdown_timeout"`
	Trace           bool               `mapstructure:"trace"` // otelgin spans
	Auth            AuthConfig         `mapstructure:"auth"`
	RequestLog      RequestLogConfig   `mapstructure:"request_log"`
	ErrorLogging    ErrorLoggingConfig `mapstructure:"error_logging"`
	Metrics         MetricsConfig      `mapstructure:"metrics"`
}

// AuthConfig bearer token verification
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`   // checked when set
	Audience string        `mapstructure:"audience"` // checked when set
	Leeway   time.Duration `mapstructure:"leeway"`
}

// RequestLogConfig HTTP request log configuration
type RequestLogConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

// ErrorLoggingConfig 业务错误日志
type ErrorLoggingConfig struct {
	Enable           bool   `mapstructure:"enable"`
	IgnoreHTTPStatus []int  `mapstructure:"ignore_http_status"`
	FullErrorChain   bool   `mapstructure:"full_error_chain"`
	LogLevel         string `mapstructure:"log_level"` // error, warn, info
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Addr:            ":8080",
		Mode:            "release",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Trace:           false,
		Auth: AuthConfig{
			Issuer: "liqguard",
			Leeway: 5 * time.Second,
		},
		RequestLog: RequestLogConfig{
			Enabled:   true,
			SkipPaths: []string{"/healthz"},
		},
		ErrorLogging: ErrorLoggingConfig{
			Enable:           true,
			IgnoreHTTPStatus: []int{400, 401, 404},
			FullErrorChain:   true,
			LogLevel:         "warn",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate 未启用时不校验
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Mode, validation.In("debug", "release", "test")),
		validation.Field(&c.Auth),
		validation.Field(&c.ErrorLogging),
	)
}

// Validate auth
func (a AuthConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Secret, validation.Required, validation.Length(16, 0)),
	)
}

// Validate error logging
func (e ErrorLoggingConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.LogLevel, validation.In("error", "warn", "info")),
	)
}
