package breaker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/signed"
)

// Options 控制器依赖
type Options struct {
	Engine     *limiter.Engine
	Custody    Custody
	Access     AccessControl
	Pause      PauseFlag
	Clock      Clock            // 默认 clockwork 实时时钟
	Dispatcher event.Dispatcher // 默认按 Config.Event 创建
	Logger     *logger.CtxZapLogger
}

// Controller 熔断控制器
//
// 所有操作由同一把锁串行化：检查全部通过后才修改状态，转账永远是最后一步。
// Custody 实现不得在 Transfer 中回调控制器。
type Controller struct {
	mu sync.Mutex

	config  Config
	engine  *limiter.Engine
	custody Custody
	access  AccessControl
	pause   PauseFlag
	clock   Clock
	events  event.Dispatcher
	metrics *OTelMetrics
	logger  *logger.CtxZapLogger

	protected      map[string]struct{}
	locked         map[string]map[string]*uint256.Int // recipient -> asset -> amount
	tripped        bool
	lastTrippedAt  time.Time
	gracePeriodEnd time.Time
}

// NewController 创建熔断控制器
func NewController(cfg Config, opts Options) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case opts.Engine == nil:
		return nil, ErrInvalidConfig.WithMsgf("limiter engine is required")
	case opts.Custody == nil:
		return nil, ErrInvalidConfig.WithMsgf("custody is required")
	case opts.Access == nil:
		return nil, ErrInvalidConfig.WithMsgf("access control is required")
	case opts.Pause == nil:
		return nil, ErrInvalidConfig.WithMsgf("pause flag is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger("liqguard")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = event.NewDispatcher(append(event.FromConfig(cfg.Event), event.WithLogger(opts.Logger))...)
	}

	return &Controller{
		config:    cfg,
		engine:    opts.Engine,
		custody:   opts.Custody,
		access:    opts.Access,
		pause:     opts.Pause,
		clock:     opts.Clock,
		events:    opts.Dispatcher,
		logger:    opts.Logger,
		protected: make(map[string]struct{}),
		locked:    make(map[string]map[string]*uint256.Int),
	}, nil
}

// SetMetrics 挂载指标
func (c *Controller) SetMetrics(m *OTelMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	if m != nil {
		m.SetTrippedCallback(c.IsRateLimited)
	}
}

// Events 事件分发器，用于订阅控制器事件
func (c *Controller) Events() event.Dispatcher {
	return c.events
}

// Engine 底层限流引擎
func (c *Controller) Engine() *limiter.Engine {
	return c.engine
}

// Config 当前配置
func (c *Controller) Config() Config {
	return c.config
}

// Close 关闭事件分发器
func (c *Controller) Close() {
	c.events.Close()
}

// ========== 资产管理 ==========

// RegisterAsset 注册资产（管理员）
func (c *Controller) RegisterAsset(ctx context.Context, caller, asset string, policy limiter.Policy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := c.engine.Init(ctx, asset, policy); err != nil {
		return err
	}
	c.publish(ctx, c.assetEvent(EventAssetRegistered, asset, policy))
	return nil
}

// UpdateAssetParams 更新资产策略并同步窗口（管理员）
func (c *Controller) UpdateAssetParams(ctx context.Context, caller, asset string, policy limiter.Policy, maxSyncSteps int) (limiter.SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return limiter.SyncResult{}, err
	}
	// 策略与同步一起提交
	batch := c.engine.Begin()
	if err := batch.UpdateParams(ctx, asset, policy); err != nil {
		return limiter.SyncResult{}, err
	}
	res, err := batch.Sync(ctx, asset, c.nowUnix(), c.config.withdrawalSeconds(), c.syncSteps(maxSyncSteps))
	if err != nil {
		return res, err
	}
	if err := batch.Commit(ctx); err != nil {
		return limiter.SyncResult{}, err
	}
	c.publish(ctx, c.assetEvent(EventAssetParamsUpdated, asset, policy))
	return res, nil
}

// AddProtectedCallers 允许 ids 上报流量（管理员）
func (c *Controller) AddProtectedCallers(ctx context.Context, caller string, ids ...string) error {
	return c.updateProtected(ctx, caller, true, ids)
}

// RemoveProtectedCallers 撤销 ids（管理员）
func (c *Controller) RemoveProtectedCallers(ctx context.Context, caller string, ids ...string) error {
	return c.updateProtected(ctx, caller, false, ids)
}

func (c *Controller) updateProtected(ctx context.Context, caller string, add bool, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	changed := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if add {
			c.protected[id] = struct{}{}
		} else {
			delete(c.protected, id)
		}
		changed = append(changed, id)
	}
	if len(changed) == 0 {
		return nil
	}

	c.logger.InfoCtx(ctx, "protected callers updated",
		zap.Bool("added", add),
		zap.Strings("callers", changed))
	c.publish(ctx, &ProtectedCallersEvent{
		BaseEvent: c.newEvent(EventProtectedCallers),
		Added:     add,
		Callers:   changed,
	})
	return nil
}

// ========== 流量上报 ==========

// OnTokenInflow 记录流入，流入路径没有熔断判断
func (c *Controller) OnTokenInflow(ctx context.Context, caller, asset string, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflow(ctx, caller, asset, amount)
}

// OnNativeInflow 记录原生资产流入
func (c *Controller) OnNativeInflow(ctx context.Context, caller string, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflow(ctx, caller, NativeAsset, amount)
}

func (c *Controller) inflow(ctx context.Context, caller, asset string, amount *uint256.Int) error {
	if err := c.requireFlowCaller(caller); err != nil {
		return err
	}
	if amount == nil {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	_, err := c.engine.RecordChange(ctx, asset, signed.FromUint(amount),
		c.nowUnix(), c.config.withdrawalSeconds(), c.config.tickSeconds())
	return err
}

// OnTokenOutflow 处理流出
//
// 未注册资产直接转账；已熔断或本次流出触发熔断时，revertOnBreach 为 true 返回
// ErrRateLimited 且不留任何修改，否则将资金锁定给 recipient。
func (c *Controller) OnTokenOutflow(ctx context.Context, caller, asset string, amount *uint256.Int, recipient string, revertOnBreach bool) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outflow(ctx, caller, asset, amount, recipient, revertOnBreach)
}

// OnNativeOutflow 处理原生资产流出
func (c *Controller) OnNativeOutflow(ctx context.Context, caller string, amount *uint256.Int, recipient string, revertOnBreach bool) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outflow(ctx, caller, NativeAsset, amount, recipient, revertOnBreach)
}

func (c *Controller) outflow(ctx context.Context, caller, asset string, amount *uint256.Int, recipient string, revertOnBreach bool) (Outcome, error) {
	if err := c.requireFlowCaller(caller); err != nil {
		return OutcomeSkipped, err
	}
	if amount == nil {
		return OutcomeSkipped, ErrInvalidAmount
	}
	if recipient == "" {
		return OutcomeSkipped, ErrInvalidRecipient
	}
	if amount.IsZero() {
		return OutcomeSkipped, nil
	}

	tracked, err := c.engine.IsInitialized(ctx, asset)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !tracked {
		if err := c.transfer(ctx, asset, recipient, amount); err != nil {
			return OutcomeSkipped, err
		}
		c.recordOutcome(ctx, asset, OutcomeTransferred)
		return OutcomeTransferred, nil
	}

	if c.tripped && revertOnBreach {
		return OutcomeSkipped, ErrRateLimited.WithData("asset", asset)
	}

	now := c.clock.Now()
	batch := c.engine.Begin()
	if _, err := batch.RecordChange(ctx, asset, signed.NegFromUint(amount),
		uint64(now.Unix()), c.config.withdrawalSeconds(), c.config.tickSeconds()); err != nil {
		return OutcomeSkipped, err
	}

	if c.tripped {
		if err := batch.Commit(ctx); err != nil {
			return OutcomeSkipped, err
		}
		c.lockFunds(ctx, asset, recipient, amount)
		return OutcomeLocked, nil
	}

	status, err := batch.Status(ctx, asset)
	if err != nil {
		return OutcomeSkipped, err
	}
	if status == limiter.StatusTriggered && !c.inGracePeriod(now) {
		if revertOnBreach {
			return OutcomeSkipped, ErrRateLimited.WithData("asset", asset)
		}
		if err := batch.Commit(ctx); err != nil {
			return OutcomeSkipped, err
		}
		c.trip(ctx, asset, now)
		c.lockFunds(ctx, asset, recipient, amount)
		return OutcomeLocked, nil
	}

	if err := batch.Commit(ctx); err != nil {
		return OutcomeSkipped, err
	}
	if err := c.transfer(ctx, asset, recipient, amount); err != nil {
		if undoErr := batch.Undo(ctx); undoErr != nil {
			c.logger.ErrorCtx(ctx, "回滚流出记录失败", zap.String("asset", asset), zap.Error(undoErr))
		}
		return OutcomeSkipped, err
	}
	c.recordOutcome(ctx, asset, OutcomeTransferred)
	return OutcomeTransferred, nil
}

func (c *Controller) trip(ctx context.Context, asset string, now time.Time) {
	c.tripped = true
	c.lastTrippedAt = now
	if c.metrics != nil {
		c.metrics.RecordTrip(ctx, asset)
	}
	c.logger.WarnCtx(ctx, "circuit breaker tripped",
		zap.String("asset", asset),
		zap.Time("tripped_at", now))
	c.publish(ctx, &TrippedEvent{BaseEvent: c.newEvent(EventBreakerTripped), Asset: asset})
}

func (c *Controller) lockFunds(ctx context.Context, asset, recipient string, amount *uint256.Int) {
	byAsset, ok := c.locked[recipient]
	if !ok {
		byAsset = make(map[string]*uint256.Int)
		c.locked[recipient] = byAsset
	}
	prev, ok := byAsset[asset]
	if !ok {
		prev = new(uint256.Int)
	}
	byAsset[asset] = new(uint256.Int).Add(prev, amount)

	c.recordOutcome(ctx, asset, OutcomeLocked)
	c.logger.InfoCtx(ctx, "funds locked",
		zap.String("asset", asset),
		zap.String("recipient", recipient),
		zap.String("amount", amount.Dec()))
	c.publish(ctx, c.fundsEvent(EventFundsLocked, asset, recipient, amount))
}

// ClearBacklog 淘汰最多 maxSteps 个过期时间桶，任何人都可以调用
func (c *Controller) ClearBacklog(ctx context.Context, asset string, maxSteps int) (limiter.SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Sync(ctx, asset, c.nowUnix(), c.config.withdrawalSeconds(), c.syncSteps(maxSteps))
}

// ========== 恢复 ==========

// OverrideRateLimit 管理员立即解除熔断，不附带宽限期
func (c *Controller) OverrideRateLimit(ctx context.Context, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if !c.tripped {
		return ErrNotRateLimited
	}
	c.clear(ctx, SourceAdmin)
	return nil
}

// OverrideExpiredRateLimit 冷却期过后任何人都可以解除熔断
func (c *Controller) OverrideExpiredRateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tripped {
		return ErrNotRateLimited
	}
	if elapsed := c.clock.Now().Sub(c.lastTrippedAt); elapsed < c.config.CooldownPeriod {
		return ErrCooldownNotReached.
			WithData("elapsed", elapsed.String()).
			WithData("cooldown", c.config.CooldownPeriod.String())
	}
	c.clear(ctx, SourceCooldown)
	return nil
}

// ClearBreach 由治理模块在提案执行后调用；未熔断时什么都不做
func (c *Controller) ClearBreach(ctx context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tripped {
		c.logger.DebugCtx(ctx, "clear breach ignored, not tripped", zap.String("source", source))
		return nil
	}
	c.clear(ctx, source)
	return nil
}

func (c *Controller) clear(ctx context.Context, source string) {
	c.tripped = false
	if c.metrics != nil {
		c.metrics.RecordRecovery(ctx, source)
	}
	c.logger.InfoCtx(ctx, "circuit breaker cleared", zap.String("source", source))
	c.publish(ctx, &BreachClearedEvent{BaseEvent: c.newEvent(EventBreachCleared), Source: source})
}

// StartGracePeriod 在 [now, end] 内不对 Triggered 采取行动（管理员）
func (c *Controller) StartGracePeriod(ctx context.Context, caller string, end time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if !end.After(c.clock.Now()) {
		return ErrInvalidGracePeriodEnd.WithData("end", end)
	}
	c.gracePeriodEnd = end

	c.logger.InfoCtx(ctx, "grace period started", zap.Time("end", end))
	c.publish(ctx, &GracePeriodEvent{BaseEvent: c.newEvent(EventGracePeriodStarted), End: end})
	return nil
}

// ClaimLockedFunds 熔断解除后领取锁定资金，先清零再转账
func (c *Controller) ClaimLockedFunds(ctx context.Context, asset, recipient string) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pause.IsPaused() {
		return nil, ErrProtocolPaused
	}
	if recipient == "" {
		return nil, ErrInvalidRecipient
	}
	amount, ok := c.locked[recipient][asset]
	if !ok || amount.IsZero() {
		return nil, ErrNoLockedFunds.WithData("asset", asset).WithData("recipient", recipient)
	}
	if c.tripped {
		return nil, ErrRateLimited.WithData("asset", asset)
	}

	delete(c.locked[recipient], asset)
	if err := c.transfer(ctx, asset, recipient, amount); err != nil {
		c.locked[recipient][asset] = amount
		return nil, err
	}
	if len(c.locked[recipient]) == 0 {
		delete(c.locked, recipient)
	}

	if c.metrics != nil {
		c.metrics.RecordClaim(ctx, asset)
	}
	c.logger.InfoCtx(ctx, "locked funds claimed",
		zap.String("asset", asset),
		zap.String("recipient", recipient),
		zap.String("amount", amount.Dec()))
	c.publish(ctx, c.fundsEvent(EventFundsClaimed, asset, recipient, amount))
	return new(uint256.Int).Set(amount), nil
}

// MarkAsNotOperational 暂停协议，进入迁移状态（管理员）
func (c *Controller) MarkAsNotOperational(ctx context.Context, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	c.pause.SetPaused(true)

	c.logger.WarnCtx(ctx, "protocol marked as not operational", zap.String("caller", caller))
	c.publish(ctx, &OperationalEvent{BaseEvent: c.newEvent(EventMarkedNotOperational), Caller: caller})
	return nil
}

// MigrateFundsAfterExploit 暂停状态下把托管账户中每个资产的余额转给 recovery，绕过限流（管理员）
//
// Transfers cannot be rolled back. When one fails, the assets already moved
// are returned together with ErrMigrationIncomplete naming the failed asset;
// their custody balance is now zero, so calling again moves only the rest.
func (c *Controller) MigrateFundsAfterExploit(ctx context.Context, caller string, assets []string, recovery string) (map[string]*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if !c.pause.IsPaused() {
		return nil, ErrNotPausedForMigration
	}
	if recovery == "" {
		return nil, ErrInvalidRecipient
	}

	// 先查全部余额，查询失败时不转任何资产
	order := make([]string, 0, len(assets))
	balances := make(map[string]*uint256.Int, len(assets))
	for _, asset := range assets {
		if _, dup := balances[asset]; dup {
			continue
		}
		bal, err := c.custody.BalanceOf(ctx, asset, c.config.Custodian)
		if err != nil {
			return nil, fmt.Errorf("query custody balance failed: %w", err)
		}
		balances[asset] = bal
		order = append(order, asset)
	}

	moved := make(map[string]*uint256.Int, len(order))
	for _, asset := range order {
		bal := balances[asset]
		if bal == nil || bal.IsZero() {
			continue
		}
		if err := c.transfer(ctx, asset, recovery, bal); err != nil {
			done := make([]string, 0, len(moved))
			for a := range moved {
				done = append(done, a)
			}
			sort.Strings(done)
			c.logger.ErrorCtx(ctx, "migration stopped",
				zap.String("asset", asset),
				zap.Strings("moved", done))
			return moved, ErrMigrationIncomplete.Wrap(err).
				WithData("asset", asset).
				WithData("moved", done)
		}
		moved[asset] = bal
		c.logger.WarnCtx(ctx, "funds migrated",
			zap.String("asset", asset),
			zap.String("recipient", recovery),
			zap.String("amount", bal.Dec()))
		c.publish(ctx, c.fundsEvent(EventFundsMigrated, asset, recovery, bal))
	}
	return moved, nil
}

// ========== 查询 ==========

// IsRateLimited 是否处于熔断状态
func (c *Controller) IsRateLimited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripped
}

// IsRateLimitTriggered 资产当前是否满足触发条件，不产生副作用
func (c *Controller) IsRateLimitTriggered(ctx context.Context, asset string) (bool, error) {
	status, err := c.Status(ctx, asset)
	if err != nil {
		return false, err
	}
	return status == limiter.StatusTriggered, nil
}

// Status 资产状态
func (c *Controller) Status(ctx context.Context, asset string) (limiter.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Status(ctx, asset)
}

// Limiter 资产限流状态快照
func (c *Controller) Limiter(ctx context.Context, asset string) (limiter.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.State(ctx, asset)
}

// Window 资产窗口内的时间桶
func (c *Controller) Window(ctx context.Context, asset string) ([]limiter.Tick, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Window(ctx, asset)
}

// Assets 已注册资产
func (c *Controller) Assets(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Assets(ctx)
}

// LockedFunds recipient 在 asset 上的锁定金额
func (c *Controller) LockedFunds(recipient, asset string) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.locked[recipient][asset]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// GracePeriodEnd 宽限期结束时间，零值表示从未设置
func (c *Controller) GracePeriodEnd() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gracePeriodEnd
}

// LastRateLimitTimestamp 最近一次熔断时间
func (c *Controller) LastRateLimitTimestamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTrippedAt
}

// IsOperational 协议是否正常运行
func (c *Controller) IsOperational() bool {
	return !c.pause.IsPaused()
}

// IsProtectedCaller ids 是否允许上报流量
func (c *Controller) IsProtectedCaller(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.protected[id]
	return ok
}

// Snapshot 控制器状态快照
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	callers := make([]string, 0, len(c.protected))
	for id := range c.protected {
		callers = append(callers, id)
	}
	sort.Strings(callers)

	return Snapshot{
		RateLimited:      c.tripped,
		LastTrippedAt:    c.lastTrippedAt,
		GracePeriodEnd:   c.gracePeriodEnd,
		Operational:      !c.pause.IsPaused(),
		ProtectedCallers: callers,
	}
}

// ========== 内部辅助 ==========

func (c *Controller) requireAdmin(ctx context.Context, caller string) error {
	if !c.access.IsAdmin(ctx, caller) {
		return ErrNotAdmin.WithData("caller", caller)
	}
	return nil
}

func (c *Controller) requireFlowCaller(caller string) error {
	if _, ok := c.protected[caller]; !ok {
		return ErrNotProtectedCaller.WithData("caller", caller)
	}
	if c.pause.IsPaused() {
		return ErrProtocolPaused
	}
	return nil
}

func (c *Controller) transfer(ctx context.Context, asset, recipient string, amount *uint256.Int) error {
	if err := c.custody.Transfer(ctx, asset, recipient, amount); err != nil {
		c.logger.ErrorCtx(ctx, "custody transfer failed",
			zap.String("asset", asset),
			zap.String("recipient", recipient),
			zap.String("amount", amount.Dec()),
			zap.Error(err))
		return ErrTransferFailed.Wrap(err).WithData("asset", asset)
	}
	return nil
}

// inGracePeriod 宽限期包含结束时刻
func (c *Controller) inGracePeriod(now time.Time) bool {
	return !c.gracePeriodEnd.IsZero() && !now.After(c.gracePeriodEnd)
}

func (c *Controller) nowUnix() uint64 {
	return uint64(c.clock.Now().Unix())
}

func (c *Controller) syncSteps(n int) int {
	if n <= 0 {
		return c.config.MaxSyncSteps
	}
	return n
}

func (c *Controller) recordOutcome(ctx context.Context, asset string, o Outcome) {
	if c.metrics != nil {
		c.metrics.RecordOutflow(ctx, asset, o)
	}
}

func (c *Controller) newEvent(name string) event.BaseEvent {
	return event.NewEvent(name, c.clock.Now())
}

func (c *Controller) assetEvent(name, asset string, p limiter.Policy) *AssetEvent {
	return &AssetEvent{
		BaseEvent:           c.newEvent(name),
		Asset:               asset,
		MinLiqRetainedBps:   p.MinLiqRetainedBps,
		LimitBeginThreshold: p.LimitBeginThreshold.Dec(),
	}
}

func (c *Controller) fundsEvent(name, asset, recipient string, amount *uint256.Int) *FundsEvent {
	return &FundsEvent{
		BaseEvent: c.newEvent(name),
		Asset:     asset,
		Recipient: recipient,
		Amount:    amount.Dec(),
	}
}

// publish 事件发布不影响调用结果
func (c *Controller) publish(ctx context.Context, e event.Event) {
	c.events.DispatchAsync(ctx, e)
}
