// Package database 管理 gorm 连接实例，供持久化的限流状态存储使用
package database

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 单个数据库实例配置
type Config struct {
	Driver          string        `mapstructure:"driver"`            // mysql, postgres, sqlite
	DSN             string        `mapstructure:"dsn"`               // data source name
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // Maximum number of open connections
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // Maximum number of idle connections
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // Connection maximum lifetime
	EnableLog       bool          `mapstructure:"enable_log"`        // route SQL through the "sql" logger
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`    // slow query threshold
}

// DefaultConfig 默认配置（本地 sqlite）
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		DSN:             "file:liqguard.db?cache=shared",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		EnableLog:       true,
		SlowThreshold:   200 * time.Millisecond,
	}
}

// Validate configuration
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In("mysql", "postgres", "sqlite")),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
	if err != nil {
		return ErrInvalidConfig.Wrap(err)
	}
	return nil
}

// applyDefaults 填充未设置的连接池参数
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = d.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = d.SlowThreshold
	}
}
