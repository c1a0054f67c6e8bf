package logger

import (
	"strings"
)

// GinLogWriter Gin 日志适配器（实现 io.Writer 接口）
// 将 Gin 的文本日志转为结构化日志
type GinLogWriter struct {
	log *CtxZapLogger
}

// NewGinLogWriter 创建 Gin 日志适配器
func NewGinLogWriter(log *CtxZapLogger) *GinLogWriter {
	if log == nil {
		log = GetLogger("gin")
	}
	return &GinLogWriter{log: log}
}

// Write 实现 io.Writer 接口
func (w *GinLogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch {
	case strings.Contains(msg, "[GIN-debug]"):
		// 路由注册
		w.log.Debug(msg)
	case strings.Contains(msg, "[Recovery]") || strings.Contains(msg, "panic recovered"):
		w.log.Error(msg)
	default:
		w.log.Info(msg)
	}
	return len(p), nil
}
