package httpapi

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应格式
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// OkJson 成功响应
func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// NoRouteHandler 404
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleError(c, ErrRouteNotFound.WithMsgf("路由不存在: %s %s", c.Request.Method, c.Request.URL.Path))
	}
}

// NoMethodHandler 405
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleError(c, ErrMethodNotAllowed.WithMsgf("方法不允许: %s %s", c.Request.Method, c.Request.URL.Path))
	}
}

// HandleError writes err as the envelope.
// LayeredError keeps its code, message, status and data; anything else
// becomes ErrInternal without leaking the cause.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	ctx := c.Request.Context()
	cfg := getErrorLoggingConfig(c)
	log := logger.GetLogger("httpapi")

	var layeredErr *errcode.LayeredError
	if !errors.As(err, &layeredErr) {
		if cfg.Enable {
			log.ErrorCtx(ctx, "unexpected error", zap.Error(err))
		}
		layeredErr = ErrInternal
		c.AbortWithStatusJSON(layeredErr.HTTPStatus(), Response{
			Code: layeredErr.Code(),
			Msg:  layeredErr.Message(),
		})
		return
	}

	if cfg.Enable && !cfg.IgnoreStatusMap[layeredErr.HTTPStatus()] {
		fields := []zap.Field{
			zap.Int("error_code", layeredErr.Code()),
			zap.String("error_msg", layeredErr.Message()),
		}
		if cfg.FullErrorChain {
			fields = append(fields, zap.String("error_chain", layeredErr.String()))
		}
		switch cfg.LogLevel {
		case "warn":
			log.WarnCtx(ctx, "业务错误", fields...)
		case "info":
			log.InfoCtx(ctx, "业务错误", fields...)
		default:
			log.ErrorCtx(ctx, "业务错误", fields...)
		}
	}

	var data interface{}
	if len(layeredErr.Data()) > 0 {
		data = layeredErr.Data()
	}
	c.AbortWithStatusJSON(layeredErr.HTTPStatus(), Response{
		Code: layeredErr.Code(),
		Msg:  layeredErr.Message(),
		Data: data,
	})
}

const errorLoggingConfigKey = "httpapi:error_logging_config"

type errorLoggingConfigInternal struct {
	Enable          bool
	IgnoreStatusMap map[int]bool
	FullErrorChain  bool
	LogLevel        string
}

// ErrorLoggingMiddleware 注入错误日志配置到 Context
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig) gin.HandlerFunc {
	ignore := make(map[int]bool, len(cfg.IgnoreHTTPStatus))
	for _, status := range cfg.IgnoreHTTPStatus {
		ignore[status] = true
	}
	internal := errorLoggingConfigInternal{
		Enable:          cfg.Enable,
		IgnoreStatusMap: ignore,
		FullErrorChain:  cfg.FullErrorChain,
		LogLevel:        cfg.LogLevel,
	}

	return func(c *gin.Context) {
		c.Set(errorLoggingConfigKey, internal)
		c.Next()
	}
}

func getErrorLoggingConfig(c *gin.Context) errorLoggingConfigInternal {
	if val, exists := c.Get(errorLoggingConfigKey); exists {
		if cfg, ok := val.(errorLoggingConfigInternal); ok {
			return cfg
		}
	}
	// 默认不记录
	return errorLoggingConfigInternal{IgnoreStatusMap: map[int]bool{}}
}
