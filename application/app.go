// Package application 组装熔断服务：配置、日志、存储、限流引擎、熔断控制器、
// 治理、遥测与 HTTP 接口，全部交给 samber/do 管理
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/config"
	"github.com/KOMKZ/go-yogan-liqguard/governance"
	"github.com/KOMKZ/go-yogan-liqguard/httpapi"
	"github.com/KOMKZ/go-yogan-liqguard/kafka"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/redis"
	"github.com/KOMKZ/go-yogan-liqguard/telemetry"
)

// AppState 应用状态
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

// String 状态字符串表示
func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Application 熔断服务应用
type Application struct {
	injector *do.RootScope

	cfg    AppConfig
	logger *logger.CtxZapLogger
	clock  clockwork.Clock

	// Start 之后可用
	engine    *limiter.Engine
	ctrl      *breaker.Controller
	council   *governance.Council
	telemetry *telemetry.Manager
	scheduler gocron.Scheduler

	state     AppState
	startedAt time.Time
	mu        sync.RWMutex
}

type options struct {
	loaderOpts config.ProvideLoaderOptions
	cfg        *AppConfig
	logger     *logger.CtxZapLogger
	clock      clockwork.Clock
	custody    breaker.Custody
	access     breaker.AccessControl
	pause      breaker.PauseFlag
}

// Option 应用选项
type Option func(*options)

// WithConfigPath 配置目录
func WithConfigPath(path string) Option {
	return func(o *options) {
		o.loaderOpts.ConfigPath = path
	}
}

// WithConfigFile 基础配置文件名
func WithConfigFile(name string) Option {
	return func(o *options) {
		o.loaderOpts.ConfigFile = name
	}
}

// WithOverrides 命令行覆盖（最高优先级）
func WithOverrides(overrides map[string]interface{}) Option {
	return func(o *options) {
		o.loaderOpts.Overrides = overrides
	}
}

// WithConfig 直接使用已构建的配置，不再读取文件和环境变量
func WithConfig(cfg AppConfig) Option {
	return func(o *options) {
		o.cfg = &cfg
	}
}

// WithLogger 使用指定 logger，不再初始化全局日志管理器
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithClock 替换时钟（测试与回放）
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithCustody 注入宿主托管实现，替代内置账本
func WithCustody(custody breaker.Custody) Option {
	return func(o *options) {
		o.custody = custody
	}
}

// WithAccessControl 注入宿主权限实现
func WithAccessControl(access breaker.AccessControl) Option {
	return func(o *options) {
		o.access = access
	}
}

// WithPauseFlag 注入宿主暂停开关
func WithPauseFlag(pause breaker.PauseFlag) Option {
	return func(o *options) {
		o.pause = pause
	}
}

// New 加载配置并注册所有组件；组件在 Start 时才真正创建
func New(opts ...Option) (*Application, error) {
	o := &options{loaderOpts: config.ProvideLoaderOptions{EnvPrefix: "LIQGUARD"}}
	for _, opt := range opts {
		opt(o)
	}

	injector := do.New()

	var cfg AppConfig
	if o.cfg != nil {
		cfg = *o.cfg
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid app config: %w", err)
		}
	} else {
		do.Provide(injector, config.ProvideLoader(o.loaderOpts))
		loader, err := do.Invoke[*config.Loader](injector)
		if err != nil {
			return nil, err
		}
		if cfg, err = LoadAppConfig(loader); err != nil {
			return nil, fmt.Errorf("invalid app config: %w", err)
		}
	}

	log := o.logger
	if log == nil {
		logger.InitManager(cfg.Logger)
		log = logger.GetLogger("liqguard")
	}
	clock := o.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.ProvideValue(injector, clock)
	registerProviders(injector, cfg, o)

	return &Application{
		injector: injector,
		cfg:      cfg,
		logger:   log,
		clock:    clock,
		state:    StateInit,
	}, nil
}

// Start 创建组件、注册指标、注册启动资产并启动清理任务
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateInit {
		return fmt.Errorf("application already started (state %s)", a.state)
	}
	a.state = StateSetup
	a.startedAt = a.clock.Now()

	tm, err := do.Invoke[*telemetry.Manager](a.injector)
	if err != nil {
		return err
	}
	if err := tm.Start(ctx); err != nil {
		return fmt.Errorf("telemetry start failed: %w", err)
	}
	a.telemetry = tm

	if a.engine, err = do.Invoke[*limiter.Engine](a.injector); err != nil {
		return fmt.Errorf("limiter engine: %w", err)
	}
	if a.ctrl, err = do.Invoke[*breaker.Controller](a.injector); err != nil {
		return fmt.Errorf("breaker controller: %w", err)
	}
	if a.council, err = do.Invoke[*governance.Council](a.injector); err != nil {
		return fmt.Errorf("governance council: %w", err)
	}

	if err := a.registerMetrics(ctx, tm.Registry()); err != nil {
		return err
	}
	if err := a.attachEventSink(ctx); err != nil {
		return err
	}
	if err := a.registerAssets(ctx); err != nil {
		return err
	}
	if err := a.startScheduler(); err != nil {
		return err
	}

	a.state = StateRunning
	a.logger.InfoCtx(ctx, "✅ liqguard started",
		zap.String("store", a.cfg.Store.Type),
		zap.Int("assets", len(a.cfg.Assets)),
		zap.Bool("cleanup", a.cfg.Cleanup.Enabled),
		zap.Bool("telemetry", a.cfg.Telemetry.Enabled))
	return nil
}

// attachEventSink 启用 kafka 时把事件转发到 topic
func (a *Application) attachEventSink(ctx context.Context) error {
	if !a.cfg.Kafka.Enabled {
		return nil
	}
	p, err := do.Invoke[*kafka.Producer](a.injector)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	kafka.NewEventSink(p, a.cfg.Kafka, a.logger).Attach(a.ctrl.Events())
	a.logger.InfoCtx(ctx, "kafka event sink attached",
		zap.String("topic", a.cfg.Kafka.Topic),
		zap.Strings("events", a.cfg.Kafka.Events))
	return nil
}

// registerMetrics 各模块的指标统一挂到 registry；registry 关闭时全部为空操作
func (a *Application) registerMetrics(ctx context.Context, registry *telemetry.MetricsRegistry) error {
	lm := limiter.NewOTelMetrics(a.cfg.Breaker.Limiter.Metrics)
	if err := registry.Register(lm); err != nil {
		return err
	}
	a.engine.SetMetrics(lm)
	if err := a.engine.WatchAssets(ctx); err != nil {
		return err
	}

	bm := breaker.NewOTelMetrics(a.cfg.Breaker.Metrics)
	if err := registry.Register(bm); err != nil {
		return err
	}
	a.ctrl.SetMetrics(bm)

	if mgr, err := do.Invoke[*redis.Manager](a.injector); err == nil {
		rm := redis.NewMetrics(a.cfg.Redis.Metrics)
		if err := registry.Register(rm); err != nil {
			return err
		}
		mgr.SetMetrics(rm)
	}

	if a.cfg.Kafka.Enabled {
		p, err := do.Invoke[*kafka.Producer](a.injector)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		km := kafka.NewMetrics(a.cfg.Kafka.Metrics)
		if err := registry.Register(km); err != nil {
			return err
		}
		p.SetMetrics(km)
	}

	if a.cfg.HTTP.Enabled {
		if err := registry.Register(do.MustInvoke[*httpapi.Metrics](a.injector)); err != nil {
			return err
		}
	}
	return nil
}

// registerAssets 注册配置中的资产，存储中已存在的资产保持原状
func (a *Application) registerAssets(ctx context.Context) error {
	if len(a.cfg.Assets) == 0 {
		return nil
	}
	admin := a.cfg.Host.Admins[0]
	for _, ac := range a.cfg.Assets {
		ok, err := a.engine.IsInitialized(ctx, ac.Asset)
		if err != nil {
			return err
		}
		if ok {
			a.logger.DebugCtx(ctx, "asset already registered", zap.String("asset", ac.Asset))
			continue
		}
		if err := a.ctrl.RegisterAsset(ctx, admin, ac.Asset, ac.Policy()); err != nil {
			return fmt.Errorf("register asset %s: %w", ac.Asset, err)
		}
	}
	return nil
}

// Shutdown 停止清理任务并按依赖顺序关闭组件
func (a *Application) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateStopping || a.state == StateStopped {
		a.mu.Unlock()
		return nil
	}
	a.state = StateStopping
	a.mu.Unlock()

	a.logger.InfoCtx(ctx, "🔄 liqguard shutting down...")

	if a.scheduler != nil {
		if err := a.shutdownScheduler(ctx); err != nil {
			a.logger.ErrorCtx(ctx, "scheduler shutdown failed", zap.Error(err))
		}
	}
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.engine != nil {
		if err := a.engine.Store().Close(); err != nil {
			a.logger.WarnCtx(ctx, "store close failed", zap.Error(err))
		}
	}

	// 其余组件（HTTP server、telemetry、redis、database）由容器关闭
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.injector.Shutdown(); err != nil {
			a.logger.Debug("injector shutdown report", zap.Error(err))
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.WarnCtx(ctx, "shutdown interrupted", zap.Error(ctx.Err()))
		return ctx.Err()
	}

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	a.logger.InfoCtx(ctx, "✅ liqguard stopped")
	return nil
}

// Server HTTP 服务，http.enabled=false 时返回错误
func (a *Application) Server() (*httpapi.Server, error) {
	return do.Invoke[*httpapi.Server](a.injector)
}

// Config 应用配置
func (a *Application) Config() AppConfig {
	return a.cfg
}

// Controller 熔断控制器，Start 之前为 nil
func (a *Application) Controller() *breaker.Controller {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctrl
}

// Council 治理模块，Start 之前为 nil
func (a *Application) Council() *governance.Council {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.council
}

// Custody 托管实现（默认为内置账本）
func (a *Application) Custody() (breaker.Custody, error) {
	return do.Invoke[breaker.Custody](a.injector)
}

// Logger 应用日志
func (a *Application) Logger() *logger.CtxZapLogger {
	return a.logger
}

// Injector 底层容器
func (a *Application) Injector() do.Injector {
	return a.injector
}

// State 当前状态
func (a *Application) State() AppState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Uptime 启动至今的时长
func (a *Application) Uptime() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.startedAt.IsZero() {
		return 0
	}
	return a.clock.Since(a.startedAt)
}
