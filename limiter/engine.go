package limiter

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/signed"
	"github.com/KOMKZ/go-yogan-liqguard/tickwindow"
)

// Engine runs the limiter algorithm against a Store.
// It is not safe for concurrent mutation of the same asset; callers serialise.
// Every mutation is staged in a Batch and committed in one step, so a failed
// store write never leaves a window half updated.
type Engine struct {
	config  Config
	store   Store
	metrics *OTelMetrics
	logger  *logger.CtxZapLogger

	// mu holds window readers off while a batch is being written
	mu sync.RWMutex
	// batch is set on the staging engine of a Batch
	batch *Batch
}

// NewEngine creates an engine with the default logger
func NewEngine(store Store) *Engine {
	return NewEngineWithLogger(DefaultConfig(), store, nil)
}

// NewEngineWithLogger creates an engine with an injected logger
func NewEngineWithLogger(cfg Config, store Store, ctxLogger *logger.CtxZapLogger) *Engine {
	if ctxLogger == nil {
		ctxLogger = logger.GetLogger("liqguard")
	}
	return &Engine{
		config: cfg,
		store:  store,
		logger: ctxLogger,
	}
}

// SetMetrics attaches an OTel metrics provider
func (e *Engine) SetMetrics(m *OTelMetrics) {
	e.metrics = m
}

// observe records metrics now, or on commit for a staging engine
func (e *Engine) observe(ctx context.Context, fn func(ctx context.Context, m *OTelMetrics)) {
	if e.batch != nil {
		e.batch.pending = append(e.batch.pending, fn)
		return
	}
	if e.metrics != nil {
		fn(ctx, e.metrics)
	}
}

// staged runs fn on a fresh batch and commits it when fn succeeds.
// A staging engine runs fn on itself.
func (e *Engine) staged(ctx context.Context, fn func(tx *Engine) error) error {
	if e.batch != nil {
		return fn(e)
	}
	b := e.Begin()
	if err := fn(b.Engine); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// watchWindow exposes the window length of asset as a gauge. The callback
// runs on the metrics reader goroutine; Window waits for an in-flight commit.
func (e *Engine) watchWindow(asset string) {
	if e.metrics == nil {
		return
	}
	e.metrics.RegisterWindowCallback(asset, func() int64 {
		ticks, err := e.Window(context.Background(), asset)
		if err != nil {
			return 0
		}
		return int64(len(ticks))
	})
}

// WatchAssets registers window gauges for every stored asset
func (e *Engine) WatchAssets(ctx context.Context) error {
	assets, err := e.Assets(ctx)
	if err != nil {
		return err
	}
	for _, a := range assets {
		e.watchWindow(a)
	}
	return nil
}

// Store returns the backing store
func (e *Engine) Store() Store {
	return e.store
}

// Init registers asset with a fresh state
func (e *Engine) Init(ctx context.Context, asset string, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	_, ok, err := e.store.LoadState(ctx, asset)
	if err != nil {
		return fmt.Errorf("load limiter state failed: %w", err)
	}
	if ok {
		return ErrAlreadyInitialized.WithData("asset", asset)
	}

	st := State{
		Asset:       asset,
		Policy:      policy,
		LiqTotal:    signed.Zero(),
		LiqInPeriod: signed.Zero(),
		Initialized: true,
	}
	e.mu.Lock()
	err = e.store.SaveState(ctx, st)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save limiter state failed: %w", err)
	}

	e.watchWindow(asset)
	e.logger.InfoCtx(ctx, "limiter initialized",
		zap.String("asset", asset),
		zap.Uint32("min_liq_retained_bps", policy.MinLiqRetainedBps),
		zap.String("limit_begin_threshold", policy.LimitBeginThreshold.Dec()))
	return nil
}

// UpdateParams replaces the policy and keeps every counter.
// Callers sync afterwards to fold any visible backlog.
func (e *Engine) UpdateParams(ctx context.Context, asset string, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	err := e.staged(ctx, func(tx *Engine) error {
		st, err := tx.mustLoad(ctx, asset)
		if err != nil {
			return err
		}
		st.Policy = policy
		if err := tx.store.SaveState(ctx, st); err != nil {
			return fmt.Errorf("save limiter state failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.InfoCtx(ctx, "limiter params updated",
		zap.String("asset", asset),
		zap.Uint32("min_liq_retained_bps", policy.MinLiqRetainedBps),
		zap.String("limit_begin_threshold", policy.LimitBeginThreshold.Dec()))
	return nil
}

// RecordChange adds amount to the asset's liquidity and window. Unregistered
// assets are ignored (recorded=false). An expired head is folded first with
// an unbounded budget so the window never holds aged ticks when data is added.
func (e *Engine) RecordChange(ctx context.Context, asset string, amount signed.Int,
	now, withdrawalPeriod, tickLength uint64) (recorded bool, err error) {
	err = e.staged(ctx, func(tx *Engine) error {
		var rerr error
		recorded, rerr = tx.recordChange(ctx, asset, amount, now, withdrawalPeriod, tickLength)
		return rerr
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func (e *Engine) recordChange(ctx context.Context, asset string, amount signed.Int,
	now, withdrawalPeriod, tickLength uint64) (bool, error) {
	st, ok, err := e.store.LoadState(ctx, asset)
	if err != nil {
		return false, fmt.Errorf("load limiter state failed: %w", err)
	}
	if !ok {
		return false, nil
	}

	// every check happens before the first write
	if tickLength == 0 {
		return false, tickwindow.ErrInvalidTickLength
	}
	tid := tickwindow.TickID(now, tickLength)
	if tid == tickwindow.None {
		return false, tickwindow.ErrInvalidTick.WithData("timestamp", now)
	}
	if !st.List.Empty() && tid < st.List.Tail {
		return false, tickwindow.ErrStaleTick.WithData("tick", tid).WithData("tail", st.List.Tail)
	}
	total, err := st.LiqTotal.AddChecked(amount)
	if err != nil {
		return false, err
	}
	inPeriod, err := st.LiqInPeriod.AddChecked(amount)
	if err != nil {
		return false, err
	}

	if !st.List.Empty() && now >= st.List.Head && now-st.List.Head >= withdrawalPeriod {
		if _, err := e.syncState(ctx, &st, now, withdrawalPeriod, tickwindow.Unbounded); err != nil {
			return false, err
		}
		// evicted flow is already part of liq_total; only the window share moves
		inPeriod, err = st.LiqInPeriod.AddChecked(amount)
		if err != nil {
			return false, err
		}
	}

	cur, err := tickwindow.AppendOrMerge(ctx, e.store, asset, st.List, amount, now, tickLength)
	if err != nil {
		return false, err
	}
	st.List = cur
	st.LiqTotal = total
	st.LiqInPeriod = inPeriod
	if err := e.store.SaveState(ctx, st); err != nil {
		return false, fmt.Errorf("save limiter state failed: %w", err)
	}

	outflow := amount.IsNegative()
	e.observe(ctx, func(ctx context.Context, m *OTelMetrics) {
		m.RecordChange(ctx, asset, outflow)
	})
	e.logger.DebugCtx(ctx, "liquidity change recorded",
		zap.String("asset", asset),
		zap.Stringer("amount", amount),
		zap.Stringer("liq_total", st.LiqTotal),
		zap.Stringer("liq_in_period", st.LiqInPeriod))
	return true, nil
}

// Sync evicts up to maxSteps aged ticks and moves their flow out of the window
// An error leaves the stored window untouched.
func (e *Engine) Sync(ctx context.Context, asset string, now, withdrawalPeriod uint64, maxSteps int) (SyncResult, error) {
	var res SyncResult
	err := e.staged(ctx, func(tx *Engine) error {
		st, err := tx.mustLoad(ctx, asset)
		if err != nil {
			return err
		}
		res, err = tx.syncState(ctx, &st, now, withdrawalPeriod, maxSteps)
		if err != nil {
			return err
		}
		if res.Steps > 0 {
			if err := tx.store.SaveState(ctx, st); err != nil {
				return fmt.Errorf("save limiter state failed: %w", err)
			}
		}
		return nil
	})
	return res, err
}

// syncState evicts into st without persisting it
func (e *Engine) syncState(ctx context.Context, st *State, now, withdrawalPeriod uint64, maxSteps int) (SyncResult, error) {
	ev, cur, err := tickwindow.Evict(ctx, e.store, st.Asset, st.List, withdrawalPeriod, now, maxSteps)
	if err != nil {
		return SyncResult{List: st.List}, err
	}
	inPeriod, err := st.LiqInPeriod.SubChecked(ev.Evicted)
	if err != nil {
		return SyncResult{List: st.List}, err
	}
	st.List = cur
	st.LiqInPeriod = inPeriod

	if ev.Steps > 0 {
		asset, steps := st.Asset, ev.Steps
		e.observe(ctx, func(ctx context.Context, m *OTelMetrics) {
			m.RecordEviction(ctx, asset, steps)
		})
		e.logger.DebugCtx(ctx, "window synced",
			zap.String("asset", st.Asset),
			zap.Int("steps", ev.Steps),
			zap.Stringer("evicted", ev.Evicted),
			zap.Stringer("liq_in_period", st.LiqInPeriod))
	}
	if e.config.CheckInvariants {
		e.checkWindow(ctx, *st)
	}
	return SyncResult{Evicted: ev.Evicted, Steps: ev.Steps, List: cur}, nil
}

// checkWindow logs when the stored nodes no longer sum to liq_in_period
func (e *Engine) checkWindow(ctx context.Context, st State) {
	sum, n, err := tickwindow.Sum(ctx, e.store, st.Asset, st.List)
	if err != nil {
		e.logger.ErrorCtx(ctx, "window walk failed", zap.String("asset", st.Asset), zap.Error(err))
		return
	}
	if !sum.Eq(st.LiqInPeriod) {
		e.logger.ErrorCtx(ctx, "window sum diverged from liq_in_period",
			zap.String("asset", st.Asset),
			zap.Int("nodes", n),
			zap.Stringer("window_sum", sum),
			zap.Stringer("liq_in_period", st.LiqInPeriod))
	}
}

// Status evaluates the asset. Unregistered assets are StatusUninitialized.
func (e *Engine) Status(ctx context.Context, asset string) (Status, error) {
	st, _, err := e.store.LoadState(ctx, asset)
	if err != nil {
		return StatusUninitialized, fmt.Errorf("load limiter state failed: %w", err)
	}
	status := st.Evaluate()
	e.observe(ctx, func(ctx context.Context, m *OTelMetrics) {
		m.RecordStatus(ctx, asset, status)
	})
	return status, nil
}

// State returns the stored state of asset
func (e *Engine) State(ctx context.Context, asset string) (State, error) {
	return e.mustLoad(ctx, asset)
}

// IsInitialized reports whether asset is registered
func (e *Engine) IsInitialized(ctx context.Context, asset string) (bool, error) {
	_, ok, err := e.store.LoadState(ctx, asset)
	if err != nil {
		return false, fmt.Errorf("load limiter state failed: %w", err)
	}
	return ok, nil
}

// Assets lists registered assets
func (e *Engine) Assets(ctx context.Context) ([]string, error) {
	assets, err := e.store.Assets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets failed: %w", err)
	}
	return assets, nil
}

// Window lists the tick nodes of asset from head to tail
func (e *Engine) Window(ctx context.Context, asset string) ([]Tick, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, err := e.mustLoad(ctx, asset)
	if err != nil {
		return nil, err
	}
	var ticks []Tick
	err = tickwindow.Walk(ctx, e.store, asset, st.List, func(tick uint64, node tickwindow.Node) error {
		ticks = append(ticks, Tick{ID: tick, Amount: node.Amount})
		return nil
	})
	return ticks, err
}

// Tick one window bucket
type Tick struct {
	ID     uint64     `json:"id"`
	Amount signed.Int `json:"amount"`
}

func (e *Engine) mustLoad(ctx context.Context, asset string) (State, error) {
	st, ok, err := e.store.LoadState(ctx, asset)
	if err != nil {
		return State{}, fmt.Errorf("load limiter state failed: %w", err)
	}
	if !ok {
		return State{}, ErrNotInitialized.WithData("asset", asset)
	}
	return st, nil
}
