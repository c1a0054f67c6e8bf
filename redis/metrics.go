package redis

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsConfig Redis 指标配置
type MetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RecordPoolStats bool `mapstructure:"record_pool_stats"`
}

// PoolStats connection pool snapshot
type PoolStats struct {
	ActiveCount int64
	IdleCount   int64
}

// Metrics implements component.MetricsProvider for the store's redis traffic
type Metrics struct {
	config     MetricsConfig
	registered bool
	mu         sync.RWMutex

	commandsTotal   metric.Int64Counter
	commandDuration metric.Float64Histogram
	errorsTotal     metric.Int64Counter

	poolCallbacks map[string]func() PoolStats
	poolMu        sync.RWMutex
}

// NewMetrics creates the provider
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		config:        cfg,
		poolCallbacks: make(map[string]func() PoolStats),
	}
}

// MetricsName returns the metrics group name
func (m *Metrics) MetricsName() string { return "redis" }

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *Metrics) IsMetricsEnabled() bool { return m.config.Enabled }

// RegisterMetrics registers instruments on meter
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.commandsTotal, err = meter.Int64Counter(
		"redis_commands_total",
		metric.WithDescription("Total number of Redis commands executed"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	m.commandDuration, err = meter.Float64Histogram(
		"redis_command_duration_seconds",
		metric.WithDescription("Redis command duration distribution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.errorsTotal, err = meter.Int64Counter(
		"redis_errors_total",
		metric.WithDescription("Total number of Redis errors, redis.Nil excluded"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	if m.config.RecordPoolStats {
		active, err := meter.Int64ObservableGauge("redis_connections_active",
			metric.WithDescription("Connections in use"))
		if err != nil {
			return err
		}
		idle, err := meter.Int64ObservableGauge("redis_connections_idle",
			metric.WithDescription("Idle connections"))
		if err != nil {
			return err
		}
		_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			m.poolMu.RLock()
			defer m.poolMu.RUnlock()
			for instance, cb := range m.poolCallbacks {
				s := cb()
				attrs := metric.WithAttributes(attribute.String("instance", instance))
				o.ObserveInt64(active, s.ActiveCount, attrs)
				o.ObserveInt64(idle, s.IdleCount, attrs)
			}
			return nil
		}, active, idle)
		if err != nil {
			return err
		}
	}

	m.registered = true
	return nil
}

// SetPoolStatsCallback registers a pool snapshot source for instance
func (m *Metrics) SetPoolStatsCallback(instance string, cb func() PoolStats) {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	m.poolCallbacks[instance] = cb
}

// RecordCommand records one command outcome
func (m *Metrics) RecordCommand(ctx context.Context, instance, cmd string, d time.Duration, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.registered {
		return
	}

	status := "success"
	if err != nil && err != redis.Nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("instance", instance),
		attribute.String("command", cmd),
		attribute.String("status", status),
	)
	m.commandsTotal.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, d.Seconds(), attrs)
	if status == "error" {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("instance", instance),
			attribute.String("command", cmd),
		))
	}
}

// IsRegistered reports whether RegisterMetrics has run
func (m *Metrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// MetricsHook implements redis.Hook
type MetricsHook struct {
	metrics  *Metrics
	instance string
}

// NewMetricsHook creates a hook reporting under instance
func NewMetricsHook(metrics *Metrics, instance string) *MetricsHook {
	return &MetricsHook{metrics: metrics, instance: instance}
}

// DialHook pass through
func (h *MetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook records single commands
func (h *MetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.metrics.RecordCommand(ctx, h.instance, cmd.Name(), time.Since(start), err)
		return err
	}
}

// ProcessPipelineHook records each command of a pipeline (TxPipelined included)
func (h *MetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if len(cmds) == 0 {
			return err
		}
		per := time.Since(start) / time.Duration(len(cmds))
		for _, cmd := range cmds {
			h.metrics.RecordCommand(ctx, h.instance, cmd.Name(), per, cmd.Err())
		}
		return err
	}
}
