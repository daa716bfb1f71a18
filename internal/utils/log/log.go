// Package log is a thin process-wide wrapper around a zap logger.
package log

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Config struct {
		Level    string
		File     string
		Encoding string
		Disable  bool
	}
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
	// closeOutput releases the file behind logger, if any.
	closeOutput = func() {}
)

func init() {
	l, err := zap.NewDevelopment()
	if err == nil {
		logger = l
	}
}

// Init replaces the process logger. An empty File logs to stderr.
func Init(cfg Config) error {
	if cfg.Disable {
		set(zap.NewNop(), func() {})
		return nil
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return fmt.Errorf("log: invalid level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch cfg.Encoding {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("log: invalid encoding %q", cfg.Encoding)
	}

	path := "stderr"
	if cfg.File != "" {
		path = cfg.File
	}
	out, closeOut, err := zap.Open(path)
	if err != nil {
		return fmt.Errorf("log: failed to open log output: %w", err)
	}

	set(zap.New(zapcore.NewCore(enc, out, level)), closeOut)
	return nil
}

// set installs l and closes the output of the logger it replaces.
func set(l *zap.Logger, closeOut func()) {
	mu.Lock()
	old, oldClose := logger, closeOutput
	logger, closeOutput = l, closeOut
	mu.Unlock()

	_ = old.Sync()
	oldClose()
}

// L returns the current logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a child logger carrying fields, e.g. a session id.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}

func Sync() error {
	return L().Sync()
}
