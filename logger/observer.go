package logger

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserved returns a logger whose entries are captured in memory, for tests
func NewObserved(level zapcore.Level) (*CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &CtxZapLogger{
		base:   zap.New(core),
		module: "test",
	}, logs
}

// NewNop returns a logger that discards everything
func NewNop() *CtxZapLogger {
	return &CtxZapLogger{base: zap.NewNop(), module: "nop"}
}

// NewConsole 输出到 w 的 console 编码 logger，CLI 用于把日志写到 stderr
func NewConsole(w io.Writer, module string, level zapcore.Level) *CtxZapLogger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(zapcore.AddSync(w)), level)
	return &CtxZapLogger{base: zap.New(core), module: module}
}
