package limiter

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics implements component.MetricsProvider for the limiter engine
type OTelMetrics struct {
	config     MetricsConfig
	meter      metric.Meter
	registered bool
	mu         sync.RWMutex

	changesTotal  metric.Int64Counter // recorded flows by direction
	evictedTicks  metric.Int64Counter // ticks folded out of the window
	statusChecks  metric.Int64Counter // status evaluations by result
	windowLengths metric.Int64ObservableGauge

	// per-asset window length callbacks
	windowCallbacks map[string]func() int64
	windowMu        sync.RWMutex
}

// MetricsConfig limiter metrics configuration
type MetricsConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	RecordStatus bool `mapstructure:"record_status"`
	RecordWindow bool `mapstructure:"record_window"`
}

// NewOTelMetrics creates the provider
func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{
		config:          cfg,
		windowCallbacks: make(map[string]func() int64),
	}
}

// MetricsName returns the metrics group name
func (m *OTelMetrics) MetricsName() string {
	return "limiter"
}

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *OTelMetrics) IsMetricsEnabled() bool {
	return m.config.Enabled
}

// RegisterMetrics registers all limiter instruments with meter
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	m.meter = meter
	var err error

	m.changesTotal, err = meter.Int64Counter(
		"liqguard_limiter_changes_total",
		metric.WithDescription("Total number of recorded liquidity changes"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return err
	}

	m.evictedTicks, err = meter.Int64Counter(
		"liqguard_limiter_evicted_ticks_total",
		metric.WithDescription("Total number of ticks evicted from the window"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return err
	}

	if m.config.RecordStatus {
		m.statusChecks, err = meter.Int64Counter(
			"liqguard_limiter_status_total",
			metric.WithDescription("Total number of status evaluations"),
			metric.WithUnit("{check}"),
		)
		if err != nil {
			return err
		}
	}

	if m.config.RecordWindow {
		m.windowLengths, err = meter.Int64ObservableGauge(
			"liqguard_limiter_window_ticks",
			metric.WithDescription("Ticks currently held in the window"),
			metric.WithUnit("{tick}"),
			metric.WithInt64Callback(m.collectWindows),
		)
		if err != nil {
			return err
		}
	}

	m.registered = true
	return nil
}

func (m *OTelMetrics) collectWindows(_ context.Context, observer metric.Int64Observer) error {
	m.windowMu.RLock()
	defer m.windowMu.RUnlock()

	for asset, callback := range m.windowCallbacks {
		observer.Observe(callback(), metric.WithAttributes(attribute.String("asset", asset)))
	}
	return nil
}

// RegisterWindowCallback registers a window length callback for asset
func (m *OTelMetrics) RegisterWindowCallback(asset string, callback func() int64) {
	m.windowMu.Lock()
	defer m.windowMu.Unlock()
	m.windowCallbacks[asset] = callback
}

// UnregisterWindowCallback removes the callback of asset
func (m *OTelMetrics) UnregisterWindowCallback(asset string) {
	m.windowMu.Lock()
	defer m.windowMu.Unlock()
	delete(m.windowCallbacks, asset)
}

// RecordChange counts one recorded flow
func (m *OTelMetrics) RecordChange(ctx context.Context, asset string, outflow bool) {
	if !m.IsRegistered() {
		return
	}
	direction := "inflow"
	if outflow {
		direction = "outflow"
	}
	m.changesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset", asset),
		attribute.String("direction", direction),
	))
}

// RecordEviction counts evicted ticks
func (m *OTelMetrics) RecordEviction(ctx context.Context, asset string, ticks int) {
	if !m.IsRegistered() {
		return
	}
	m.evictedTicks.Add(ctx, int64(ticks), metric.WithAttributes(attribute.String("asset", asset)))
}

// RecordStatus counts a status evaluation
func (m *OTelMetrics) RecordStatus(ctx context.Context, asset string, status Status) {
	if !m.IsRegistered() || m.statusChecks == nil {
		return
	}
	m.statusChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset", asset),
		attribute.String("status", status.String()),
	))
}

// IsRegistered returns whether metrics have been registered
func (m *OTelMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}
