package application

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/logger"
)

const cleanupJobName = "backlog-cleanup"

// startScheduler 启动窗口积压清理任务
func (a *Application) startScheduler() error {
	if !a.cfg.Cleanup.Enabled {
		return nil
	}
	s, err := gocron.NewScheduler(
		gocron.WithClock(a.clock),
		gocron.WithLogger(cronLogger{log: a.logger}),
	)
	if err != nil {
		return fmt.Errorf("create scheduler failed: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(a.cfg.Cleanup.Interval),
		gocron.NewTask(func() {
			_, _ = a.CleanupBacklog(context.Background())
		}),
		gocron.WithName(cleanupJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("register cleanup job failed: %w", err)
	}

	s.Start()
	a.scheduler = s
	a.logger.Debug("cleanup job scheduled",
		zap.Duration("interval", a.cfg.Cleanup.Interval),
		zap.Int("max_steps", a.cfg.Cleanup.MaxSteps))
	return nil
}

// CleanupBacklog 对每个资产淘汰最多 cleanup.max_steps 个过期时间桶，返回总步数。
// 单个资产失败只记录日志，不影响其余资产。
func (a *Application) CleanupBacklog(ctx context.Context) (int, error) {
	ctrl := a.Controller()
	if ctrl == nil {
		return 0, fmt.Errorf("application not started")
	}
	assets, err := ctrl.Assets(ctx)
	if err != nil {
		a.logger.ErrorCtx(ctx, "list assets failed", zap.Error(err))
		return 0, err
	}

	total := 0
	for _, asset := range assets {
		res, err := ctrl.ClearBacklog(ctx, asset, a.cfg.Cleanup.MaxSteps)
		if err != nil {
			a.logger.WarnCtx(ctx, "backlog cleanup failed", zap.String("asset", asset), zap.Error(err))
			continue
		}
		if res.Steps > 0 {
			a.logger.DebugCtx(ctx, "backlog cleaned",
				zap.String("asset", asset),
				zap.Int("steps", res.Steps),
				zap.String("evicted", res.Evicted.String()))
		}
		total += res.Steps
	}
	return total, nil
}

// shutdownScheduler 等待正在执行的任务结束，超时则放弃
func (a *Application) shutdownScheduler(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- a.scheduler.Shutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("scheduler shutdown timeout")
	}
}

// cronLogger 将 gocron 日志写入 zap
type cronLogger struct {
	log *logger.CtxZapLogger
}

func (l cronLogger) Debug(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Debugw(msg, args...)
}

func (l cronLogger) Info(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Infow(msg, args...)
}

func (l cronLogger) Warn(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Warnw(msg, args...)
}

func (l cronLogger) Error(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Errorw(msg, args...)
}
