package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KOMKZ/go-yogan-liqguard/application"
	"github.com/KOMKZ/go-yogan-liqguard/flagx"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	ConfigPath      string        `flag:"config,c" usage:"config directory" default:"./configs"`
	ConfigFile      string        `flag:"config-file" usage:"base config file name" default:"config.yaml"`
	Addr            string        `flag:"addr" usage:"HTTP listen address" config:"http.addr"`
	LogLevel        string        `flag:"log-level" usage:"log level (debug|info|warn|error)" config:"logger.level"`
	Cleanup         bool          `flag:"cleanup" usage:"run the backlog cleanup job" default:"true" config:"cleanup.enabled"`
	CleanupInterval time.Duration `flag:"cleanup-interval" usage:"backlog cleanup interval" default:"1m" config:"cleanup.interval"`
	Admins          []string      `flag:"admin" usage:"admin ids" config:"host.admins"`
}

func newServeCommand(_ *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the breaker with its HTTP API",
		Long: `Load configuration from the config directory and LIQGUARD_* environment
variables, register configured assets and serve the HTTP API until SIGINT or
SIGTERM. Flags that are set explicitly override both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flagx.ParseFlags(cmd, opts); err != nil {
				return wrapExit(exitCommandError, "parse flags", err)
			}
			overrides, err := flagx.Overrides(cmd, opts)
			if err != nil {
				return wrapExit(exitCommandError, "parse flags", err)
			}
			return runServe(opts, overrides)
		},
	}
	if err := flagx.BindFlags(cmd, opts); err != nil {
		panic(err)
	}
	return cmd
}

func runServe(opts *serveOptions, overrides map[string]interface{}) error {
	app, err := application.New(
		application.WithConfigPath(opts.ConfigPath),
		application.WithConfigFile(opts.ConfigFile),
		application.WithOverrides(overrides),
	)
	if err != nil {
		return wrapExit(exitCommandError, "load config", err)
	}
	defer logger.CloseAll()
	log := app.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if app.Config().HTTP.Enabled {
		srv, err := app.Server()
		if err != nil {
			_ = app.Shutdown(context.Background())
			return err
		}
		g.Go(srv.ListenAndServe)
	}
	g.Go(func() error {
		waitShutdown(gctx, log)
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return app.Shutdown(sctx)
	})
	return g.Wait()
}

// waitShutdown 第一次信号优雅关闭，第二次信号强制退出
func waitShutdown(ctx context.Context, log *logger.CtxZapLogger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		go func() {
			sig := <-quit
			log.Warn("second signal received, forcing exit", zap.String("signal", sig.String()))
			os.Exit(exitFailure)
		}()
	case <-ctx.Done():
		log.Info("server stopped, shutting down")
	}
}
