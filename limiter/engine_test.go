package limiter_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"

	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/signed"
	"github.com/KOMKZ/go-yogan-liqguard/store"
	"github.com/KOMKZ/go-yogan-liqguard/tickwindow"
)

const (
	period uint64 = 3600
	tick   uint64 = 60
	t0     uint64 = 1_700_000_000
)

func newEngine(t *testing.T) (*limiter.Engine, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	log, _ := logger.NewObserved(zapcore.DebugLevel)
	return limiter.NewEngineWithLogger(limiter.DefaultConfig(), s, log), s
}

func record(t *testing.T, e *limiter.Engine, asset string, v int64, now uint64) {
	t.Helper()
	ok, err := e.RecordChange(context.Background(), asset, signed.FromInt64(v), now, period, tick)
	require.NoError(t, err)
	require.True(t, ok)
}

// assertConserved window nodes sum to liq_in_period
func assertConserved(t *testing.T, e *limiter.Engine, s limiter.Store, asset string) {
	t.Helper()
	st, err := e.State(context.Background(), asset)
	require.NoError(t, err)
	sum, _, err := tickwindow.Sum(context.Background(), s, asset, st.List)
	require.NoError(t, err)
	assert.True(t, sum.Eq(st.LiqInPeriod), "window sum %s != liq_in_period %s", sum, st.LiqInPeriod)
}

func TestInit(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	t.Run("invalid bps", func(t *testing.T) {
		for _, bps := range []uint32{0, 10001} {
			err := e.Init(ctx, "eth", limiter.NewPolicy(bps, 0))
			assert.True(t, errors.Is(err, limiter.ErrInvalidPolicy), "bps %d", bps)
		}
		ok, err := e.IsInitialized(ctx, "eth")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("bounds accepted", func(t *testing.T) {
		require.NoError(t, e.Init(ctx, "one", limiter.NewPolicy(1, 0)))
		require.NoError(t, e.Init(ctx, "full", limiter.NewPolicy(10000, 0)))
	})

	t.Run("twice", func(t *testing.T) {
		require.NoError(t, e.Init(ctx, "eth", limiter.NewPolicy(7000, 1000)))
		err := e.Init(ctx, "eth", limiter.NewPolicy(7000, 1000))
		assert.True(t, errors.Is(err, limiter.ErrAlreadyInitialized))
	})

	t.Run("fresh state", func(t *testing.T) {
		st, err := e.State(ctx, "eth")
		require.NoError(t, err)
		assert.True(t, st.Initialized)
		assert.True(t, st.LiqTotal.IsZero())
		assert.True(t, st.LiqInPeriod.IsZero())
		assert.True(t, st.List.Empty())
	})

	assets, err := e.Assets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth", "full", "one"}, assets)
}

func TestUpdateParams(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	err := e.UpdateParams(ctx, "eth", limiter.NewPolicy(5000, 0))
	assert.True(t, errors.Is(err, limiter.ErrNotInitialized))

	require.NoError(t, e.Init(ctx, "eth", limiter.NewPolicy(7000, 1000)))
	record(t, e, "eth", 5000, t0)

	assert.True(t, errors.Is(e.UpdateParams(ctx, "eth", limiter.NewPolicy(0, 0)), limiter.ErrInvalidPolicy))
	require.NoError(t, e.UpdateParams(ctx, "eth", limiter.NewPolicy(5000, 10)))

	st, err := e.State(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), st.Policy.MinLiqRetainedBps)
	assert.Equal(t, "5000", st.LiqTotal.String(), "counters survive a policy update")
	assert.Equal(t, "5000", st.LiqInPeriod.String())
}

func TestRecordChange_UnregisteredIsNoop(t *testing.T) {
	e, s := newEngine(t)
	ok, err := e.RecordChange(context.Background(), "ghost", signed.FromInt64(10), t0, period, tick)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.NodeCount())

	status, err := e.Status(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, limiter.StatusUninitialized, status)
}

func TestRecordChange_Bucketing(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	require.NoError(t, e.Init(ctx, "eth", limiter.NewPolicy(7000, 0)))

	record(t, e, "eth", 100, t0)
	record(t, e, "eth", 50, t0+1)
	ticks, err := e.Window(ctx, "eth")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "150", ticks[0].Amount.String())

	record(t, e, "eth", -20, t0+tick)
	ticks, err = e.Window(ctx, "eth")
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, "150", ticks[0].Amount.String())
	assert.Equal(t, "-20", ticks[1].Amount.String())

	assertConserved(t, e, s, "eth")
}

func TestRecordChange_RejectsStaleTick(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	require.NoError(t, e.Init(ctx, "eth", limiter.NewPolicy(7000, 0)))
	record(t, e, "eth", 100, t0+10*tick)

	before, err := e.State(ctx, "eth")
	require.NoError(t, err)

	_, err = e.RecordChange(ctx, "eth", signed.FromInt64(1), t0, period, tick)
	assert.True(t, errors.Is(err, tickwindow.ErrStaleTick))

	after, err := e.State(ctx, "eth")
	require.NoError(t, err)
	assert.True(t, before.LiqTotal.Eq(after.LiqTotal))
	assert.Equal(t, before.List, after.List)

	_, err = e.RecordChange(ctx, "eth", signed.FromInt64(1), t0+11*tick, period, 0)
	assert.True(t, errors.Is(err, tickwindow.ErrInvalidTickLength))
}

func TestRecordChange_PreSyncsAgedHead(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	require.NoError(t, e.Init(ctx, "eth", limiter.NewPolicy(7000, 0)))

	record(t, e, "eth", 100, t0)
	record(t, e, "eth", 200, t0+tick)
	// both ticks aged out when the third flow arrives
	record(t, e, "eth", 7, t0+tick+period)

	st, err := e.State(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, "307", st.LiqTotal.String())
	assert.Equal(t, "7", st.LiqInPeriod.String())
	assert.Equal(t, "300", st.ConfirmedLiquidity().String())

	ticks, err := e.Window(ctx, "eth")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, tickwindow.TickID(t0+tick+period, tick), ticks[0].ID)
	assertConserved(t, e, s, "eth")
}

func TestSync_Paging(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	require.NoError(t, e.Init(ctx, "eth", limiter.NewPolicy(7000, 0)))

	for i := uint64(0); i < 10; i++ {
		record(t, e, "eth", int64(i+1), t0+i*tick)
	}

	_, err := e.Sync(ctx, "ghost", t0, period, 1)
	assert.True(t, errors.Is(err, limiter.ErrNotInitialized))

	now := t0 + 20*tick + period
	total := signed.Zero()
	for {
		res, err := e.Sync(ctx, "eth", now, period, 3)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Steps, 3)
		total = total.Add(res.Evicted)
		assertConserved(t, e, s, "eth")
		if res.List.Empty() {
			break
		}
	}
	assert.Equal(t, "55", total.String())

	st, err := e.State(ctx, "eth")
	require.NoError(t, err)
	assert.True(t, st.LiqInPeriod.IsZero())
	assert.Equal(t, "55", st.LiqTotal.String(), "eviction never touches liq_total")
	assert.Equal(t, 0, s.NodeCount())
}

func TestScenarioA(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	require.NoError(t, e.Init(ctx, "usdc", limiter.NewPolicy(7000, 1000)))

	record(t, e, "usdc", 10000, t0)
	st, err := e.State(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, "10000", st.LiqTotal.String())

	_, err = e.Sync(ctx, "usdc", t0+period+tick, period, tickwindow.Unbounded)
	require.NoError(t, err)

	st, err = e.State(ctx, "usdc")
	require.NoError(t, err)
	assert.True(t, st.LiqInPeriod.IsZero())
	assert.Equal(t, "10000", st.LiqTotal.String())
	assert.Equal(t, "7000", st.MinRequired().String())

	status, err := e.Status(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, limiter.StatusOk, status)
}

func TestScenarioB_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("inflow then outflow in one window", func(t *testing.T) {
		e, _ := newEngine(t)
		require.NoError(t, e.Init(ctx, "usdc", limiter.NewPolicy(7000, 1000)))

		record(t, e, "usdc", 1_000_000, t0)
		record(t, e, "usdc", -300_001, t0+10*tick)

		status, err := e.Status(ctx, "usdc")
		require.NoError(t, err)
		assert.Equal(t, limiter.StatusTriggered, status)
	})

	t.Run("settled liquidity, 30% boundary", func(t *testing.T) {
		e, _ := newEngine(t)
		require.NoError(t, e.Init(ctx, "usdc", limiter.NewPolicy(7000, 1000)))
		record(t, e, "usdc", 1_000_000, t0)

		now := t0 + period + tick
		_, err := e.Sync(ctx, "usdc", now, period, tickwindow.Unbounded)
		require.NoError(t, err)

		record(t, e, "usdc", -300_000, now)
		status, err := e.Status(ctx, "usdc")
		require.NoError(t, err)
		assert.Equal(t, limiter.StatusOk, status)

		record(t, e, "usdc", -1, now+1)
		status, err = e.Status(ctx, "usdc")
		require.NoError(t, err)
		assert.Equal(t, limiter.StatusTriggered, status)
	})
}

func TestEvaluate(t *testing.T) {
	st := func(total, inPeriod int64, bps uint32, floor uint64) limiter.State {
		return limiter.State{
			Policy:      limiter.NewPolicy(bps, floor),
			LiqTotal:    signed.FromInt64(total),
			LiqInPeriod: signed.FromInt64(inPeriod),
			Initialized: true,
		}
	}

	cases := []struct {
		name  string
		state limiter.State
		want  limiter.Status
	}{
		{"unregistered", limiter.State{}, limiter.StatusUninitialized},
		{"negative liquidity", st(-5, -5, 7000, 0), limiter.StatusInactive},
		{"below floor", st(999, 999, 7000, 1000), limiter.StatusInactive},
		{"at floor", st(1000, 0, 7000, 1000), limiter.StatusOk},
		{"outflow within policy", st(7000, -3000, 7000, 0), limiter.StatusOk},
		{"outflow beyond policy", st(6999, -3001, 7000, 0), limiter.StatusTriggered},
		{"settled liquidity", st(10000, 0, 10000, 0), limiter.StatusOk},
		{"net inflow is conservative", st(100, 50, 7000, 0), limiter.StatusTriggered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.state.Evaluate())
		})
	}
}

func TestCheckInvariants_LogsDivergence(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	log, logs := logger.NewObserved(zapcore.DebugLevel)
	e := limiter.NewEngineWithLogger(limiter.Config{CheckInvariants: true}, s, log)
	require.NoError(t, e.Init(ctx, "eth", limiter.NewPolicy(7000, 0)))
	record(t, e, "eth", 10, t0)
	record(t, e, "eth", 10, t0+tick)

	// tamper with the second node behind the engine's back
	st, err := e.State(ctx, "eth")
	require.NoError(t, err)
	require.NoError(t, s.StoreNode(ctx, "eth", st.List.Tail, tickwindow.Node{Amount: signed.FromInt64(99)}))

	_, err = e.Sync(ctx, "eth", t0+tick, period, tickwindow.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("window sum diverged from liq_in_period").Len())
}

// collectMetrics sums every int64 data point by instrument name
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[md.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[md.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func newMeteredEngine(t *testing.T) (*limiter.Engine, *flakyStore, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := limiter.NewOTelMetrics(limiter.MetricsConfig{Enabled: true, RecordStatus: true, RecordWindow: true})
	require.NoError(t, m.RegisterMetrics(mp.Meter("test")))

	s := &flakyStore{MemoryStore: store.NewMemoryStore()}
	log, _ := logger.NewObserved(zapcore.DebugLevel)
	e := limiter.NewEngineWithLogger(limiter.DefaultConfig(), s, log)
	e.SetMetrics(m)
	require.NoError(t, e.Init(context.Background(), "eth", limiter.NewPolicy(7000, 0)))
	return e, s, reader
}

func TestEngine_MetricsFollowCommits(t *testing.T) {
	ctx := context.Background()
	e, s, reader := newMeteredEngine(t)
	record(t, e, "eth", 100, t0)
	record(t, e, "eth", -30, t0+tick)

	got := collectMetrics(t, reader)
	assert.Equal(t, int64(2), got["liqguard_limiter_changes_total"])
	assert.Equal(t, int64(2), got["liqguard_limiter_window_ticks"])

	// a failed commit counts nothing
	aged := t0 + period + 2*tick
	s.op, s.failAt = "StoreNode", 1
	_, err := e.RecordChange(ctx, "eth", signed.FromInt64(5), aged, period, tick)
	require.Error(t, err)
	got = collectMetrics(t, reader)
	assert.Equal(t, int64(2), got["liqguard_limiter_changes_total"])
	assert.Zero(t, got["liqguard_limiter_evicted_ticks_total"])
	assert.Equal(t, int64(2), got["liqguard_limiter_window_ticks"])

	s.op = ""
	record(t, e, "eth", 5, aged)
	_, err = e.Status(ctx, "eth")
	require.NoError(t, err)
	got = collectMetrics(t, reader)
	assert.Equal(t, int64(3), got["liqguard_limiter_changes_total"])
	assert.Equal(t, int64(2), got["liqguard_limiter_evicted_ticks_total"])
	assert.Equal(t, int64(1), got["liqguard_limiter_status_total"])
	assert.Equal(t, int64(1), got["liqguard_limiter_window_ticks"])
}

func TestEngine_WindowGaugeDuringCommits(t *testing.T) {
	e, _, reader := newMeteredEngine(t)
	record(t, e, "eth", 1, t0)

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// ten minute steps keep between one and seven ticks in the window
		for i := 1; i <= rounds; i++ {
			_, err := e.RecordChange(context.Background(), "eth", signed.FromInt64(1), t0+uint64(i)*600, period, tick)
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < rounds; i++ {
		n := collectMetrics(t, reader)["liqguard_limiter_window_ticks"]
		assert.GreaterOrEqual(t, n, int64(1))
		assert.LessOrEqual(t, n, int64(7))
	}
	wg.Wait()

	ticks, err := e.Window(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, int64(len(ticks)), collectMetrics(t, reader)["liqguard_limiter_window_ticks"])
	assertConserved(t, e, e.Store(), "eth")
}
