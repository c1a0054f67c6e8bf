package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/component"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// ServerOptions 路由依赖
type ServerOptions struct {
	API            *API
	Auth           *Authenticator
	HealthCheckers []component.HealthChecker
	Metrics        *Metrics // optional
	ServiceName    string   // otelgin service name
	Logger         *logger.CtxZapLogger
}

// Server HTTP 服务
type Server struct {
	cfg    Config
	engine *gin.Engine
	srv    *http.Server
	logger *logger.CtxZapLogger
}

// NewServer builds the router:
// recovery, tracing, request log, error logging, then /healthz and the authenticated /v1 group
func NewServer(cfg Config, opts ServerOptions) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger("httpapi")
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	gin.DefaultWriter = logger.NewGinLogWriter(log)
	gin.DefaultErrorWriter = logger.NewGinLogWriter(log)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(Recovery(log))
	if cfg.Trace {
		name := opts.ServiceName
		if name == "" {
			name = "liqguard"
		}
		engine.Use(otelgin.Middleware(name))
	}
	engine.Use(TraceID())
	if opts.Metrics != nil {
		engine.Use(opts.Metrics.Handler())
	}
	if cfg.RequestLog.Enabled {
		engine.Use(RequestLog(log, cfg.RequestLog))
	}
	engine.Use(ErrorLoggingMiddleware(cfg.ErrorLogging))
	engine.NoRoute(NoRouteHandler())
	engine.NoMethod(NoMethodHandler())

	engine.GET("/healthz", healthHandler(opts.HealthCheckers))

	v1 := engine.Group("/v1")
	v1.Use(opts.Auth.Middleware())
	if opts.API != nil {
		opts.API.Register(v1)
	}

	return &Server{
		cfg:    cfg,
		engine: engine,
		logger: log,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler the gin engine, for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve blocks on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe blocks until Shutdown
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info("HTTP server shutting down")
	return s.srv.Shutdown(ctx)
}

// HealthView GET /healthz
type HealthView struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(checkers []component.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := HealthView{Status: "ok", Checks: make(map[string]string, len(checkers))}
		healthy := true
		for _, hc := range checkers {
			if err := hc.Check(c.Request.Context()); err != nil {
				healthy = false
				view.Checks[hc.Name()] = err.Error()
				continue
			}
			view.Checks[hc.Name()] = "ok"
		}
		if !healthy {
			view.Status = "unhealthy"
			c.AbortWithStatusJSON(ErrUnhealthy.HTTPStatus(), Response{
				Code: ErrUnhealthy.Code(),
				Msg:  ErrUnhealthy.Message(),
				Data: view,
			})
			return
		}
		OkJson(c, view)
	}
}
