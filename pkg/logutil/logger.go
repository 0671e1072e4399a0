// Package logutil holds the process-wide zap logger.
package logutil

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	mu     sync.RWMutex
)

// InitLogger builds the global logger. format is "json" or "console";
// level is one of trace, debug, info, warn, error.
func InitLogger(level, format string) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewExample()
	}

	mu.Lock()
	logger = l
	mu.Unlock()
}

// GetLogger returns the global logger, or a no-op logger before InitLogger.
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// ParseLevel maps a level name to a zap level. "trace" has no zap
// equivalent and maps to debug; unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
