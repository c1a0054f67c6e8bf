package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager builds and caches one logger per module
type Manager struct {
	config  ManagerConfig
	loggers map[string]*CtxZapLogger
	writers []*lumberjack.Logger
	mu      sync.RWMutex
}

var (
	globalManager *Manager
	globalOnce    sync.Once
	globalMu      sync.RWMutex
)

// NewManager creates a manager
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		config:  cfg,
		loggers: make(map[string]*CtxZapLogger),
	}
}

// InitManager replaces the global manager, closing the previous one
func InitManager(cfg ManagerConfig) {
	m := NewManager(cfg)
	globalOnce.Do(func() {})

	globalMu.Lock()
	old := globalManager
	globalManager = m
	globalMu.Unlock()

	if old != nil {
		old.CloseAll()
	}
}

func getGlobal() *Manager {
	globalOnce.Do(func() {
		globalMu.Lock()
		if globalManager == nil {
			globalManager = NewManager(DefaultManagerConfig())
		}
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// GetLogger returns the module logger of the global manager
func GetLogger(module string) *CtxZapLogger {
	return getGlobal().GetLogger(module)
}

// CloseAll flushes the global manager
func CloseAll() {
	getGlobal().CloseAll()
}

// Config returns the effective configuration
func (m *Manager) Config() ManagerConfig {
	return m.config
}

// GetLogger returns (and caches) the logger of module
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	cfg := m.config
	l := &CtxZapLogger{
		base:   m.createLogger(module).With(zap.String("module", module)),
		module: module,
		config: &cfg,
	}
	m.loggers[module] = l
	return l
}

func (m *Manager) createLogger(module string) *zap.Logger {
	level := zap.NewAtomicLevelAt(m.config.levelFor(module))
	encoder := createEncoder(m.config)

	var cores []zapcore.Core
	if m.config.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}
	if m.config.EnableFile {
		w := &lumberjack.Logger{
			Filename:   filepath.Join(m.config.BaseLogDir, module+".log"),
			MaxSize:    m.config.MaxSize,
			MaxBackups: m.config.MaxBackups,
			MaxAge:     m.config.MaxAge,
			Compress:   m.config.Compress,
		}
		m.writers = append(m.writers, w)
		// files are always JSON
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), level))
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if m.config.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// CloseAll syncs loggers and closes rotating files
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
	for _, w := range m.writers {
		_ = w.Close()
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.writers = nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

func createEncoder(cfg ManagerConfig) zapcore.Encoder {
	if cfg.Encoding == "console" {
		ec := encoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(encoderConfig())
}
