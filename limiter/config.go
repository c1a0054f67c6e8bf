package limiter

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-liqguard/signed"
)

// Config limiter engine configuration
type Config struct {
	// CheckInvariants re-walks the window after each sync and compares it with liq_in_period
	CheckInvariants bool `mapstructure:"check_invariants"`

	// Metrics 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		CheckInvariants: false,
		Metrics: MetricsConfig{
			Enabled:      true,
			RecordStatus: true,
		},
	}
}

// Validate checks the policy bounds
func (p Policy) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.MinLiqRetainedBps,
			validation.Required,
			validation.Max(uint32(signed.BpsDenominator)),
		),
	)
	if err != nil {
		return ErrInvalidPolicy.Wrap(err).WithData("min_liq_retained_bps", p.MinLiqRetainedBps)
	}
	return nil
}
