package application

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/component"
	"github.com/KOMKZ/go-yogan-liqguard/database"
	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/governance"
	"github.com/KOMKZ/go-yogan-liqguard/host"
	"github.com/KOMKZ/go-yogan-liqguard/httpapi"
	"github.com/KOMKZ/go-yogan-liqguard/kafka"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/redis"
	"github.com/KOMKZ/go-yogan-liqguard/store"
	"github.com/KOMKZ/go-yogan-liqguard/telemetry"
)

// registerProviders 按依赖层级注册所有组件（懒加载）
func registerProviders(i do.Injector, cfg AppConfig, opts *options) {
	// Layer 0: 配置、日志、时钟（由 New 直接注入）

	// Layer 1: 基础设施，只有配置了实例才注册
	if len(cfg.Redis.Instances) > 0 {
		do.Provide(i, provideRedisManager)
	}
	if len(cfg.Database.Instances) > 0 {
		do.Provide(i, provideDatabaseManager)
	}

	// Layer 2: 宿主协作者，未注入时使用内置实现
	if opts.custody != nil {
		do.ProvideValue(i, opts.custody)
	} else {
		do.Provide(i, provideLedger)
	}
	if opts.access != nil {
		do.ProvideValue(i, opts.access)
	} else {
		do.Provide(i, provideAccessList)
	}
	if opts.pause != nil {
		do.ProvideValue(i, opts.pause)
	} else {
		do.Provide(i, providePauseSwitch)
	}

	// Layer 3: 限流与熔断
	do.Provide(i, provideStore)
	do.Provide(i, provideEngine)
	do.Provide(i, provideController)
	do.Provide(i, provideCouncil)

	// Layer 4: 对外
	if cfg.Kafka.Enabled {
		do.Provide(i, provideKafkaProducer)
	}
	do.Provide(i, provideTelemetry)
	do.Provide(i, provideHTTPMetrics)
	do.Provide(i, provideServer)
}

func provideRedisManager(i do.Injector) (*redis.Manager, error) {
	cfg := do.MustInvoke[AppConfig](i)
	log := do.MustInvoke[*logger.CtxZapLogger](i)
	return redis.NewManager(cfg.Redis.Instances, log)
}

func provideDatabaseManager(i do.Injector) (*database.Manager, error) {
	cfg := do.MustInvoke[AppConfig](i)
	log := do.MustInvoke[*logger.CtxZapLogger](i)
	return database.NewManager(cfg.Database.Instances, log)
}

// provideLedger 内置账本，按配置存入初始余额
func provideLedger(i do.Injector) (breaker.Custody, error) {
	cfg := do.MustInvoke[AppConfig](i)
	ledger := host.NewLedger(cfg.Breaker.Custodian)
	for _, d := range cfg.Host.Deposits {
		amount, err := uint256.FromDecimal(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("host deposit %s: %w", d.Asset, err)
		}
		holder := d.Holder
		if holder == "" {
			holder = ledger.Custodian()
		}
		if err := ledger.Deposit(d.Asset, holder, amount); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

func provideAccessList(i do.Injector) (breaker.AccessControl, error) {
	cfg := do.MustInvoke[AppConfig](i)
	return host.NewAccessList(cfg.Host.Admins...), nil
}

func providePauseSwitch(i do.Injector) (breaker.PauseFlag, error) {
	return &host.PauseSwitch{}, nil
}

// provideStore 按 store.type 取对应的后端实例
func provideStore(i do.Injector) (limiter.Store, error) {
	cfg := do.MustInvoke[AppConfig](i)
	log := do.MustInvoke[*logger.CtxZapLogger](i)

	var (
		client *goredis.Client
		db     *gorm.DB
	)
	switch limiter.StoreType(cfg.Store.Type) {
	case limiter.StoreTypeRedis:
		mgr, err := do.Invoke[*redis.Manager](i)
		if err != nil {
			return nil, fmt.Errorf("store needs redis: %w", err)
		}
		client = mgr.Client(cfg.Store.Redis.Instance)
	case limiter.StoreTypeDatabase:
		mgr, err := do.Invoke[*database.Manager](i)
		if err != nil {
			return nil, fmt.Errorf("store needs database: %w", err)
		}
		if db, err = mgr.MustDB(cfg.Store.Database.Instance); err != nil {
			return nil, err
		}
	}
	return store.New(cfg.Store, client, db, log)
}

func provideEngine(i do.Injector) (*limiter.Engine, error) {
	cfg := do.MustInvoke[AppConfig](i)
	log := do.MustInvoke[*logger.CtxZapLogger](i)
	st, err := do.Invoke[limiter.Store](i)
	if err != nil {
		return nil, err
	}
	return limiter.NewEngineWithLogger(cfg.Breaker.Limiter, st, log), nil
}

func provideController(i do.Injector) (*breaker.Controller, error) {
	cfg := do.MustInvoke[AppConfig](i)
	log := do.MustInvoke[*logger.CtxZapLogger](i)
	engine, err := do.Invoke[*limiter.Engine](i)
	if err != nil {
		return nil, err
	}
	custody, err := do.Invoke[breaker.Custody](i)
	if err != nil {
		return nil, err
	}

	ctrl, err := breaker.NewController(cfg.Breaker, breaker.Options{
		Engine:  engine,
		Custody: custody,
		Access:  do.MustInvoke[breaker.AccessControl](i),
		Pause:   do.MustInvoke[breaker.PauseFlag](i),
		Clock:   do.MustInvoke[clockwork.Clock](i),
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	ctrl.Events().Subscribe(event.Wildcard, auditListener(log))
	return ctrl, nil
}

// provideCouncil 治理模块与控制器共用同一个事件分发器
func provideCouncil(i do.Injector) (*governance.Council, error) {
	cfg := do.MustInvoke[AppConfig](i)
	ctrl, err := do.Invoke[*breaker.Controller](i)
	if err != nil {
		return nil, err
	}
	return governance.NewCouncil(cfg.Governance, governance.Options{
		Access:     do.MustInvoke[breaker.AccessControl](i),
		Breaker:    ctrl,
		Pause:      do.MustInvoke[breaker.PauseFlag](i),
		Clock:      do.MustInvoke[clockwork.Clock](i),
		Dispatcher: ctrl.Events(),
		Logger:     do.MustInvoke[*logger.CtxZapLogger](i),
	})
}

// provideKafkaProducer broker 不可达时启动失败
func provideKafkaProducer(i do.Injector) (*kafka.Producer, error) {
	cfg := do.MustInvoke[AppConfig](i)
	log := do.MustInvoke[*logger.CtxZapLogger](i)
	return kafka.Dial(context.Background(), cfg.Kafka, log)
}

func provideTelemetry(i do.Injector) (*telemetry.Manager, error) {
	cfg := do.MustInvoke[AppConfig](i)
	return telemetry.NewManager(cfg.Telemetry, do.MustInvoke[*logger.CtxZapLogger](i)), nil
}

func provideHTTPMetrics(i do.Injector) (*httpapi.Metrics, error) {
	cfg := do.MustInvoke[AppConfig](i)
	return httpapi.NewMetrics(cfg.HTTP.Metrics), nil
}

func provideServer(i do.Injector) (*httpapi.Server, error) {
	cfg := do.MustInvoke[AppConfig](i)
	if !cfg.HTTP.Enabled {
		return nil, fmt.Errorf("http server is disabled")
	}
	ctrl, err := do.Invoke[*breaker.Controller](i)
	if err != nil {
		return nil, err
	}
	council, err := do.Invoke[*governance.Council](i)
	if err != nil {
		return nil, err
	}
	clock := do.MustInvoke[clockwork.Clock](i)

	var checkers []component.HealthChecker
	if mgr, err := do.Invoke[*redis.Manager](i); err == nil {
		checkers = append(checkers, redis.NewHealthChecker(mgr))
	}
	if mgr, err := do.Invoke[*database.Manager](i); err == nil {
		checkers = append(checkers, database.NewHealthChecker(mgr))
	}
	if p, err := do.Invoke[*kafka.Producer](i); err == nil {
		checkers = append(checkers, kafka.NewHealthChecker(p, cfg.Kafka.Topic))
	}

	return httpapi.NewServer(cfg.HTTP, httpapi.ServerOptions{
		API:            httpapi.NewAPI(ctrl, council),
		Auth:           httpapi.NewAuthenticator(cfg.HTTP.Auth, clock.Now),
		HealthCheckers: checkers,
		Metrics:        do.MustInvoke[*httpapi.Metrics](i),
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         do.MustInvoke[*logger.CtxZapLogger](i),
	}), nil
}

// auditListener 把所有领域事件写入日志
func auditListener(log *logger.CtxZapLogger) event.ListenerFunc {
	return func(ctx context.Context, e event.Event) error {
		log.InfoCtx(ctx, "liqguard event", zap.String("event", e.Name()))
		return nil
	}
}
