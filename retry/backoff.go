package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy 第 attempt 次失败后的等待时间（attempt 从 1 开始）
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffOption 退避选项
type BackoffOption func(*backoffConfig)

type backoffConfig struct {
	multiplier float64
	maxDelay   time.Duration
	jitter     float64
}

// WithMultiplier 指数倍数，默认 2
func WithMultiplier(m float64) BackoffOption {
	return func(c *backoffConfig) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithMaxDelay 单次等待上限，默认 30s
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(c *backoffConfig) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithJitter 抖动比例 0~1，默认 0.2
func WithJitter(ratio float64) BackoffOption {
	return func(c *backoffConfig) {
		if ratio >= 0 && ratio <= 1 {
			c.jitter = ratio
		}
	}
}

type exponentialBackoff struct {
	base time.Duration
	cfg  backoffConfig
}

// ExponentialBackoff delay = base * multiplier^(attempt-1)，不超过 maxDelay
func ExponentialBackoff(base time.Duration, opts ...BackoffOption) BackoffStrategy {
	cfg := backoffConfig{multiplier: 2, maxDelay: 30 * time.Second, jitter: 0.2}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &exponentialBackoff{base: base, cfg: cfg}
}

func (b *exponentialBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(b.base) * math.Pow(b.cfg.multiplier, float64(attempt-1))
	if delay > float64(b.cfg.maxDelay) {
		delay = float64(b.cfg.maxDelay)
	}
	if b.cfg.jitter > 0 {
		// ±jitter
		delay += delay * b.cfg.jitter * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

type constantBackoff time.Duration

// ConstantBackoff 固定间隔
func ConstantBackoff(d time.Duration) BackoffStrategy {
	return constantBackoff(d)
}

func (b constantBackoff) Next(int) time.Duration { return time.Duration(b) }
