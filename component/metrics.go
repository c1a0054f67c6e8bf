// Package component 定义各模块共享的可选能力接口（指标、健康检查）
package component

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider is implemented by modules that expose OpenTelemetry
// instruments. The registry hands each provider its own Meter.
//
//	func (m *OTelMetrics) MetricsName() string { return "limiter" }
//
//	func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
//	    c, err := meter.Int64Counter("liqguard_limiter_changes_total")
//	    ...
//	}
type MetricsProvider interface {
	// MetricsName short lowercase group name, e.g. "limiter", "breaker"
	MetricsName() string

	// RegisterMetrics creates all instruments on meter
	RegisterMetrics(meter metric.Meter) error

	// IsMetricsEnabled whether the provider should be registered at all
	IsMetricsEnabled() bool
}

// MetricsCollector is implemented by telemetry.MetricsRegistry
type MetricsCollector interface {
	Register(provider MetricsProvider) error
	GetMeter(name string) metric.Meter
	GetBaseLabels() []attribute.KeyValue
	IsEnabled() bool
}

// HealthChecker 健康检查接口
type HealthChecker interface {
	// Name 检查项名称
	Name() string

	// Check 返回 nil 表示健康
	Check(ctx context.Context) error
}
