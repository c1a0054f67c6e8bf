package application

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/holiman/uint256"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/config"
	"github.com/KOMKZ/go-yogan-liqguard/database"
	"github.com/KOMKZ/go-yogan-liqguard/governance"
	"github.com/KOMKZ/go-yogan-liqguard/httpapi"
	"github.com/KOMKZ/go-yogan-liqguard/kafka"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/redis"
	"github.com/KOMKZ/go-yogan-liqguard/store"
	"github.com/KOMKZ/go-yogan-liqguard/telemetry"
	"github.com/KOMKZ/go-yogan-liqguard/validator"
)

// AppConfig 应用配置（对应 config.yaml 顶层各 section）
type AppConfig struct {
	Logger     logger.ManagerConfig `mapstructure:"logger"`
	Breaker    breaker.Config       `mapstructure:"breaker"`
	Governance governance.Config    `mapstructure:"governance"`
	Store      store.Config         `mapstructure:"store"`
	Redis      RedisConfig          `mapstructure:"redis"`
	Database   DatabaseConfig       `mapstructure:"database"`
	Telemetry  telemetry.Config     `mapstructure:"telemetry"`
	HTTP       httpapi.Config       `mapstructure:"http"`
	Kafka      kafka.Config         `mapstructure:"kafka"`
	Host       HostConfig           `mapstructure:"host"`
	Cleanup    CleanupConfig        `mapstructure:"cleanup"`

	// Assets 启动时注册（已注册的跳过）
	Assets []AssetConfig `mapstructure:"assets"`
}

// RedisConfig redis 实例集合
type RedisConfig struct {
	Instances map[string]redis.Config `mapstructure:"instances"`
	Metrics   redis.MetricsConfig     `mapstructure:"metrics"`
}

// DatabaseConfig 数据库实例集合
type DatabaseConfig struct {
	Instances map[string]database.Config `mapstructure:"instances"`
}

// HostConfig 内置托管账本与管理员
type HostConfig struct {
	// Admins 管理员标识（JWT sub）
	Admins []string `mapstructure:"admins"`

	// Deposits 启动时存入账本的余额
	Deposits []DepositConfig `mapstructure:"deposits"`
}

// DepositConfig 单笔初始余额，Holder 为空时存入托管账户
type DepositConfig struct {
	Asset  string `mapstructure:"asset"`
	Holder string `mapstructure:"holder"`
	Amount string `mapstructure:"amount"`
}

// CleanupConfig 窗口积压清理任务
type CleanupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	MaxSteps int           `mapstructure:"max_steps"`
}

// AssetConfig 启动时注册的资产策略
type AssetConfig struct {
	Asset               string `mapstructure:"asset"`
	MinLiqRetainedBps   uint32 `mapstructure:"min_liq_retained_bps"`
	LimitBeginThreshold string `mapstructure:"limit_begin_threshold"`
}

// DefaultAppConfig 默认配置：内存存储、关闭遥测、无资产
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Logger:     logger.DefaultManagerConfig(),
		Breaker:    breaker.DefaultConfig(),
		Governance: governance.DefaultConfig(),
		Store:      store.DefaultConfig(),
		Redis: RedisConfig{
			Instances: map[string]redis.Config{},
			Metrics:   redis.MetricsConfig{Enabled: true},
		},
		Database:  DatabaseConfig{Instances: map[string]database.Config{}},
		Telemetry: telemetry.DefaultConfig(),
		HTTP:      httpapi.DefaultConfig(),
		Kafka:     kafka.DefaultConfig(),
		Cleanup: CleanupConfig{
			Enabled:  true,
			Interval: time.Minute,
			MaxSteps: 100,
		},
	}
}

// LoadAppConfig 在默认值之上解析 loader 中的配置并校验
func LoadAppConfig(loader *config.Loader) (AppConfig, error) {
	cfg := DefaultAppConfig()
	if loader != nil {
		if err := loader.Unmarshal(&cfg); err != nil {
			return AppConfig{}, fmt.Errorf("unmarshal app config failed: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate 校验各 section 以及跨 section 的引用
func (c *AppConfig) Validate() error {
	if err := config.ValidateAll(
		c.Logger,
		c.Breaker,
		c.Governance,
		&c.Store,
		c.Telemetry,
		c.HTTP,
		c.Kafka,
		c.Host,
		c.Cleanup,
	); err != nil {
		return err
	}
	for name, rc := range c.Redis.Instances {
		if err := rc.Validate(); err != nil {
			return fmt.Errorf("redis.instances.%s: %w", name, err)
		}
	}
	for name, dc := range c.Database.Instances {
		if err := dc.Validate(); err != nil {
			return fmt.Errorf("database.instances.%s: %w", name, err)
		}
	}

	switch limiter.StoreType(c.Store.Type) {
	case limiter.StoreTypeRedis:
		if _, ok := c.Redis.Instances[c.Store.Redis.Instance]; !ok {
			return store.ErrMissingBackend.WithMsgf("redis instance %q is not configured", c.Store.Redis.Instance)
		}
	case limiter.StoreTypeDatabase:
		if _, ok := c.Database.Instances[c.Store.Database.Instance]; !ok {
			return store.ErrMissingBackend.WithMsgf("database instance %q is not configured", c.Store.Database.Instance)
		}
	}

	seen := make(map[string]struct{}, len(c.Assets))
	for i := range c.Assets {
		a := c.Assets[i]
		if err := a.Validate(); err != nil {
			return fmt.Errorf("assets[%d]: %w", i, err)
		}
		if _, dup := seen[a.Asset]; dup {
			return fmt.Errorf("assets[%d]: duplicate asset %q", i, a.Asset)
		}
		seen[a.Asset] = struct{}{}
	}
	if len(c.Assets) > 0 && len(c.Host.Admins) == 0 {
		return fmt.Errorf("host.admins: at least one admin is required to register assets")
	}
	return nil
}

// Validate host section
func (h HostConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Admins, validator.NoBlankItems),
		validation.Field(&h.Deposits),
	)
}

// Validate deposit
func (d DepositConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Asset, validation.Required),
		validation.Field(&d.Amount, validation.Required, validator.Amount),
	)
}

// Validate cleanup job
func (c CleanupConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxSteps, validation.Required, validation.Min(1)),
	)
}

// Validate asset policy
func (a AssetConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Asset, validation.Required),
		validation.Field(&a.MinLiqRetainedBps, validation.Required, validator.Bps),
		validation.Field(&a.LimitBeginThreshold, validator.Amount),
	)
}

// Policy converts to the limiter policy; an empty threshold means 0
func (a AssetConfig) Policy() limiter.Policy {
	threshold := new(uint256.Int)
	if a.LimitBeginThreshold != "" {
		if v, err := uint256.FromDecimal(a.LimitBeginThreshold); err == nil {
			threshold = v
		}
	}
	return limiter.Policy{MinLiqRetainedBps: a.MinLiqRetainedBps, LimitBeginThreshold: *threshold}
}
