// Package telemetry 管理 OpenTelemetry 的 TracerProvider / MeterProvider
// 以及各模块指标的注册
package telemetry

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Manager Telemetry 管理器
type Manager struct {
	config         Config
	logger         *logger.CtxZapLogger
	writer         io.Writer // stdout exporter target
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *MetricsRegistry
	started        bool
	mu             sync.RWMutex
}

// ManagerOption configures the Manager
type ManagerOption func(*Manager)

// WithWriter redirects the stdout exporters
func WithWriter(w io.Writer) ManagerOption {
	return func(m *Manager) {
		m.writer = w
	}
}

// NewManager creates the manager; nothing is exported until Start
func NewManager(config Config, log *logger.CtxZapLogger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = logger.GetLogger("liqguard")
	}
	m := &Manager{
		config: config,
		logger: log,
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 初始化 providers 并设置为全局
// When disabled, the registry is still created over the global (noop) MeterProvider
// so providers can register unconditionally.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	m.started = true

	if !m.config.Enabled {
		m.registry = m.newRegistry(nil)
		m.registry.SetEnabled(false)
		m.logger.InfoCtx(ctx, "Telemetry disabled, skipping initialization")
		return nil
	}

	res, err := m.createResource(ctx)
	if err != nil {
		return err
	}

	tp, err := m.createTracerProvider(ctx, res)
	if err != nil {
		return err
	}
	m.tracerProvider = tp
	otel.SetTracerProvider(tp)

	var mp metric.MeterProvider
	if m.config.Metrics.Enabled {
		smp, err := m.createMeterProvider(ctx, res)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return err
		}
		m.meterProvider = smp
		otel.SetMeterProvider(smp)
		mp = smp
	}
	m.registry = m.newRegistry(mp)
	m.registry.SetEnabled(m.config.Metrics.Enabled)

	m.logger.InfoCtx(ctx, "✅ Telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("metrics", m.config.Metrics.Enabled),
	)
	return nil
}

func (m *Manager) newRegistry(mp metric.MeterProvider) *MetricsRegistry {
	labels := make([]attribute.KeyValue, 0, len(m.config.Metrics.Labels)+1)
	labels = append(labels, attribute.String("service_name", m.config.ServiceName))
	for k, v := range m.config.Metrics.Labels {
		labels = append(labels, attribute.String(k, v))
	}
	ns := m.config.Metrics.Namespace
	if ns == "" {
		ns = "liqguard"
	}
	return NewMetricsRegistry(mp,
		WithNamespace(ns),
		WithBaseLabels(labels),
		WithLogger(m.logger),
	)
}

// Shutdown flushes and stops both providers
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.meterProvider != nil {
		if err := m.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		m.meterProvider = nil
	}
	if m.tracerProvider != nil {
		if err := m.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		m.tracerProvider = nil
	}
	return errors.Join(errs...)
}

// Registry returns the metrics registry, nil before Start
func (m *Manager) Registry() *MetricsRegistry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry
}

// GetTracer obtain tracer
func (m *Manager) GetTracer(name string) otelTrace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// IsEnabled reports whether telemetry is configured on
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}
