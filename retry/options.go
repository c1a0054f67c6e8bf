package retry

import "time"

type config struct {
	maxAttempts int
	backoff     BackoffStrategy
	condition   func(error) bool
	onRetry     func(attempt int, err error)
}

func defaultConfig() *config {
	return &config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(100 * time.Millisecond),
		condition:   func(error) bool { return true },
	}
}

// Option 重试选项
type Option func(*config)

// MaxAttempts 最大尝试次数（含第一次），默认 3
func MaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Backoff 退避策略，默认 100ms 起的指数退避
func Backoff(b BackoffStrategy) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// Condition 返回 false 的错误不再重试
func Condition(fn func(error) bool) Option {
	return func(c *config) {
		if fn != nil {
			c.condition = fn
		}
	}
}

// OnRetry 每次重试前回调，用于记录日志
func OnRetry(fn func(attempt int, err error)) Option {
	return func(c *config) {
		c.onRetry = fn
	}
}
