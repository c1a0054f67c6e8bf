// Package redis 管理 go-redis 客户端实例，供 Redis 限流状态存储使用
package redis

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 单个 Redis 实例配置（单机）
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`             // 0-15
	PoolSize     int           `mapstructure:"pool_size"`      // default 10
	MinIdleConns int           `mapstructure:"min_idle_conns"` // default 2
	MaxRetries   int           `mapstructure:"max_retries"`    // default 3
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // default 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // default 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // default 3s

	// 启动时 ping 的尝试次数与首次退避间隔
	ConnectAttempts int           `mapstructure:"connect_attempts"` // default 3
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`  // default 200ms
}

// Validate configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0), validation.Max(15)),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.MinIdleConns, validation.Min(0)),
		validation.Field(&c.ConnectAttempts, validation.Min(0)),
	)
}

// ApplyDefaults fills unset pool and timeout values
func (c *Config) ApplyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 3
	}
	if c.ConnectBackoff == 0 {
		c.ConnectBackoff = 200 * time.Millisecond
	}
}
