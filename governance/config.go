package governance

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 守护者初始配置
type Config struct {
	// Guardians 启动时注册的守护者
	Guardians []string `mapstructure:"guardians"`

	// Threshold 执行提案所需赞成票数
	Threshold int `mapstructure:"threshold"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Threshold: 1}
}

// Validate 验证配置，守护者不可重复，门槛按去重后的人数计算
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Guardians))
	for _, g := range c.Guardians {
		if _, dup := seen[g]; dup {
			return ErrDuplicateGuardian.WithData("guardian", g)
		}
		seen[g] = struct{}{}
	}

	limit := len(seen)
	if limit < 1 {
		limit = 1
	}
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Guardians, validation.Each(validation.Required)),
		validation.Field(&c.Threshold, validation.Required, validation.Min(1), validation.Max(limit)),
	)
	if err != nil {
		return ErrInvalidThreshold.Wrap(err)
	}
	return nil
}
