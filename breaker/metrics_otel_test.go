package breaker_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
)

// collect sums data points by name, and by name/outcome for outflows
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	add := func(name string, attrs attribute.Set, v int64) {
		out[name] += v
		if o, ok := attrs.Value("outcome"); ok {
			out[name+"/"+o.AsString()] += v
		}
	}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					add(md.Name, dp.Attributes, dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					add(md.Name, dp.Attributes, dp.Value)
				}
			}
		}
	}
	return out
}

func TestOTelMetrics_Provider(t *testing.T) {
	m := breaker.NewOTelMetrics(breaker.MetricsConfig{Enabled: true})
	assert.Equal(t, "breaker", m.MetricsName())
	assert.True(t, m.IsMetricsEnabled())
	assert.False(t, breaker.NewOTelMetrics(breaker.MetricsConfig{}).IsMetricsEnabled())

	t.Run("silent before registration", func(t *testing.T) {
		ctx := context.Background()
		assert.False(t, m.IsRegistered())
		assert.NotPanics(t, func() {
			m.RecordOutflow(ctx, "eth", breaker.OutcomeLocked)
			m.RecordTrip(ctx, "eth")
			m.RecordRecovery(ctx, "admin")
			m.RecordClaim(ctx, "eth")
		})
	})

	t.Run("idempotent registration", func(t *testing.T) {
		meter := noop.NewMeterProvider().Meter("test")
		require.NoError(t, m.RegisterMetrics(meter))
		require.NoError(t, m.RegisterMetrics(meter))
		assert.True(t, m.IsRegistered())
	})

	t.Run("outcomes need record_outcome", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		m := breaker.NewOTelMetrics(breaker.MetricsConfig{Enabled: true})
		require.NoError(t, m.RegisterMetrics(mp.Meter("test")))

		m.RecordOutflow(context.Background(), "eth", breaker.OutcomeTransferred)
		m.RecordTrip(context.Background(), "eth")
		got := collect(t, reader)
		assert.Zero(t, got["liqguard_breaker_outflows_total"])
		assert.Equal(t, int64(1), got["liqguard_breaker_trips_total"])
		// no callback, no observation
		_, observed := got["liqguard_breaker_tripped"]
		assert.False(t, observed)
	})
}

func TestOTelMetrics_ControllerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := breaker.NewOTelMetrics(breaker.MetricsConfig{Enabled: true, RecordOutcome: true})
	require.NoError(t, m.RegisterMetrics(mp.Meter("test")))
	f.ctl.SetMetrics(m)

	got := collect(t, reader)
	assert.Equal(t, int64(0), got["liqguard_breaker_tripped"])

	require.NoError(t, f.ctl.OnTokenInflow(ctx, pool, asset, uint256.NewInt(1_000_000)))
	out, err := f.ctl.OnTokenOutflow(ctx, pool, asset, uint256.NewInt(100), alice, false)
	require.NoError(t, err)
	require.Equal(t, breaker.OutcomeTransferred, out)
	out, err = f.ctl.OnTokenOutflow(ctx, pool, asset, uint256.NewInt(300_001), alice, false)
	require.NoError(t, err)
	require.Equal(t, breaker.OutcomeLocked, out)

	got = collect(t, reader)
	assert.Equal(t, int64(2), got["liqguard_breaker_outflows_total"])
	assert.Equal(t, int64(1), got["liqguard_breaker_outflows_total/transferred"])
	assert.Equal(t, int64(1), got["liqguard_breaker_outflows_total/locked"])
	assert.Equal(t, int64(1), got["liqguard_breaker_trips_total"])
	assert.Equal(t, int64(1), got["liqguard_breaker_tripped"])

	require.NoError(t, f.ctl.OverrideRateLimit(ctx, admin))
	_, err = f.ctl.ClaimLockedFunds(ctx, asset, alice)
	require.NoError(t, err)

	got = collect(t, reader)
	assert.Equal(t, int64(1), got["liqguard_breaker_recoveries_total"])
	assert.Equal(t, int64(1), got["liqguard_breaker_claims_total"])
	assert.Equal(t, int64(0), got["liqguard_breaker_tripped"])
}
