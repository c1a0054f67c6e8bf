package kafka

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsConfig Kafka 指标配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Metrics implements component.MetricsProvider for forwarded events
type Metrics struct {
	config     MetricsConfig
	registered bool
	mu         sync.RWMutex

	messagesProduced metric.Int64Counter
	produceDuration  metric.Float64Histogram
	produceErrors    metric.Int64Counter
}

// NewMetrics creates the provider
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{config: cfg}
}

// MetricsName returns the metrics group name
func (m *Metrics) MetricsName() string { return "kafka" }

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
	m.messagesProduced, err = meter.Int64Counter(
		"kafka_messages_produced_total",
		metric.WithDescription("Total number of event messages produced"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	m.produceDuration, err = meter.Float64Histogram(
		"kafka_produce_duration_seconds",
		metric.WithDescription("Kafka produce duration distribution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.produceErrors, err = meter.Int64Counter(
		"kafka_produce_errors_total",
		metric.WithDescription("Total number of produce errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

// RecordProduce records one send
func (m *Metrics) RecordProduce(ctx context.Context, topic string, d time.Duration, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.registered {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		m.produceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
	}
	attrs := metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", status),
	)
	m.messagesProduced.Add(ctx, 1, attrs)
	m.produceDuration.Record(ctx, d.Seconds(), attrs)
}

// IsRegistered returns whether metrics have been registered
func (m *Metrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}
