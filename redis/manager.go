package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/retry"
)

// Manager Redis 多实例管理器
type Manager struct {
	instances map[string]*redis.Client
	configs   map[string]Config
	logger    *logger.CtxZapLogger
	metrics   *Metrics
	mu        sync.RWMutex
}

// NewManager creates and pings every instance
func NewManager(configs map[string]Config, log *logger.CtxZapLogger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger("liqguard")
	}

	ctx := context.Background()
	m := &Manager{
		instances: make(map[string]*redis.Client),
		configs:   make(map[string]Config),
		logger:    log,
	}

	for name, cfg := range configs {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("invalid config for %s: %w", name, err)
		}

		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
		err := retry.Do(ctx, func() error {
			return client.Ping(ctx).Err()
		},
			retry.MaxAttempts(cfg.ConnectAttempts),
			retry.Backoff(retry.ExponentialBackoff(cfg.ConnectBackoff)),
			retry.OnRetry(func(attempt int, err error) {
				m.logger.WarnCtx(ctx, "Redis ping failed, retrying",
					zap.String("name", name),
					zap.Int("attempt", attempt),
					zap.Error(err))
			}),
		)
		if err != nil {
			_ = client.Close()
			_ = m.Close()
			return nil, fmt.Errorf("failed to create client %s: ping failed: %w", name, err)
		}

		m.instances[name] = client
		m.configs[name] = cfg

		m.logger.DebugCtx(ctx, "Redis connection successful",
			zap.String("name", name),
			zap.String("addr", cfg.Addr))
	}

	return m, nil
}

// Client returns the named client, nil when absent
func (m *Manager) Client(name string) *redis.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[name]
}

// Names sorted instance names
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetMetrics installs the command hook on every client and
// registers pool stats callbacks
func (m *Manager) SetMetrics(metrics *Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics = metrics
	for name, client := range m.instances {
		client.AddHook(NewMetricsHook(metrics, name))
		c := client
		metrics.SetPoolStatsCallback(name, func() PoolStats {
			s := c.PoolStats()
			return PoolStats{
				ActiveCount: int64(s.TotalConns - s.IdleConns),
				IdleCount:   int64(s.IdleConns),
			}
		})
	}
}

// Close all connections
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, client := range m.instances {
		if err := client.Close(); err != nil {
			m.logger.Error("Failed to close redis client", zap.String("name", name), zap.Error(err))
		}
	}
	m.instances = make(map[string]*redis.Client)
	return nil
}

// Shutdown implements do.Shutdowner
func (m *Manager) Shutdown() error {
	return m.Close()
}
