package breaker

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics implements component.MetricsProvider for the breach controller
type OTelMetrics struct {
	config     MetricsConfig
	meter      metric.Meter
	registered bool
	mu         sync.RWMutex

	outflowsTotal   metric.Int64Counter // handled outflows by outcome
	tripsTotal      metric.Int64Counter // breaker trips
	recoveriesTotal metric.Int64Counter // cleared breaches by source
	claimsTotal     metric.Int64Counter // claimed locked funds
	trippedGauge    metric.Int64ObservableGauge

	trippedFn func() bool
	fnMu      sync.RWMutex
}

// MetricsConfig breaker metrics configuration
type MetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RecordOutcome bool `mapstructure:"record_outcome"`
}

// NewOTelMetrics creates the provider
func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{config: cfg}
}

// MetricsName returns the metrics group name
func (m *OTelMetrics) MetricsName() string {
	return "breaker"
}

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *OTelMetrics) IsMetricsEnabled() bool {
	return m.config.Enabled
}

// RegisterMetrics registers all breaker instruments with meter
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	m.meter = meter
	var err error

	if m.config.RecordOutcome {
		m.outflowsTotal, err = meter.Int64Counter(
			"liqguard_breaker_outflows_total",
			metric.WithDescription("Total number of handled outflows by outcome"),
			metric.WithUnit("{outflow}"),
		)
		if err != nil {
			return err
		}
	}

	m.tripsTotal, err = meter.Int64Counter(
		"liqguard_breaker_trips_total",
		metric.WithDescription("Total number of breaker trips"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return err
	}

	m.recoveriesTotal, err = meter.Int64Counter(
		"liqguard_breaker_recoveries_total",
		metric.WithDescription("Total number of cleared breaches"),
		metric.WithUnit("{recovery}"),
	)
	if err != nil {
		return err
	}

	m.claimsTotal, err = meter.Int64Counter(
		"liqguard_breaker_claims_total",
		metric.WithDescription("Total number of locked fund claims"),
		metric.WithUnit("{claim}"),
	)
	if err != nil {
		return err
	}

	m.trippedGauge, err = meter.Int64ObservableGauge(
		"liqguard_breaker_tripped",
		metric.WithDescription("1 while the breaker is tripped"),
		metric.WithInt64Callback(m.observeTripped),
	)
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

func (m *OTelMetrics) observeTripped(_ context.Context, observer metric.Int64Observer) error {
	m.fnMu.RLock()
	fn := m.trippedFn
	m.fnMu.RUnlock()

	if fn == nil {
		return nil
	}
	var v int64
	if fn() {
		v = 1
	}
	observer.Observe(v)
	return nil
}

// SetTrippedCallback sets the source of the tripped gauge
func (m *OTelMetrics) SetTrippedCallback(fn func() bool) {
	m.fnMu.Lock()
	defer m.fnMu.Unlock()
	m.trippedFn = fn
}

// RecordOutflow counts a handled outflow
func (m *OTelMetrics) RecordOutflow(ctx context.Context, asset string, outcome Outcome) {
	if !m.IsRegistered() || m.outflowsTotal == nil {
		return
	}
	m.outflowsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset", asset),
		attribute.String("outcome", outcome.String()),
	))
}

// RecordTrip counts a trip
func (m *OTelMetrics) RecordTrip(ctx context.Context, asset string) {
	if !m.IsRegistered() {
		return
	}
	m.tripsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("asset", asset)))
}

// RecordRecovery counts a cleared breach
func (m *OTelMetrics) RecordRecovery(ctx context.Context, source string) {
	if !m.IsRegistered() {
		return
	}
	m.recoveriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordClaim counts a claim
func (m *OTelMetrics) RecordClaim(ctx context.Context, asset string) {
	if !m.IsRegistered() {
		return
	}
	m.claimsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("asset", asset)))
}

// IsRegistered returns whether metrics have been registered
func (m *OTelMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}
