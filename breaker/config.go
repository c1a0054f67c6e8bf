package breaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
)

// Config 熔断控制器配置
type Config struct {
	// WithdrawalPeriod 滚动窗口长度，超过该时长的流量并入基线
	WithdrawalPeriod time.Duration `mapstructure:"withdrawal_period"`

	// TickLength 时间桶长度，同一桶内的流量合并为一个节点
	TickLength time.Duration `mapstructure:"tick_length"`

	// CooldownPeriod 熔断后多久任何人都可以解除
	CooldownPeriod time.Duration `mapstructure:"cooldown_period"`

	// MaxSyncSteps UpdateAssetParams 后同步窗口的最大淘汰步数
	MaxSyncSteps int `mapstructure:"max_sync_steps"`

	// Custodian 托管账户标识（迁移时查询其余额）
	Custodian string `mapstructure:"custodian"`

	// Event 事件分发配置
	Event event.Config `mapstructure:"event"`

	// Limiter 限流引擎配置
	Limiter limiter.Config `mapstructure:"limiter"`

	// Metrics 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		WithdrawalPeriod: 4 * time.Hour,
		TickLength:       5 * time.Minute,
		CooldownPeriod:   3 * 24 * time.Hour,
		MaxSyncSteps:     100,
		Custodian:        "liqguard",
		Event:            event.DefaultConfig(),
		Limiter:          limiter.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:       true,
			RecordOutcome: true,
		},
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.WithdrawalPeriod, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.TickLength, validation.Required, validation.Min(time.Second), validation.Max(c.WithdrawalPeriod)),
		validation.Field(&c.CooldownPeriod, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxSyncSteps, validation.Required, validation.Min(1)),
		validation.Field(&c.Custodian, validation.Required),
	)
	if err != nil {
		return ErrInvalidConfig.Wrap(err)
	}
	return nil
}

func (c Config) withdrawalSeconds() uint64 { return uint64(c.WithdrawalPeriod / time.Second) }

func (c Config) tickSeconds() uint64 { return uint64(c.TickLength / time.Second) }
