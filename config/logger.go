package config

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger     *zap.SugaredLogger
	globalLoggerOnce sync.Once
)

// InitLogger builds the process-wide logger from a level name and format
// flag, backed by zap. Subsequent calls after the first are no-ops.
func InitLogger(levelName string, jsonFormat bool) {
	globalLoggerOnce.Do(func() {
		level := parseLevel(levelName)

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.TimeKey = "timestamp"

		var encoder zapcore.Encoder
		if jsonFormat {
			encoder = zapcore.NewJSONEncoder(encCfg)
		} else {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			encoder = zapcore.NewConsoleEncoder(encCfg)
		}

		core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
		logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
		globalLogger = logger.Sugar()
	})
}

// Logger returns the global logger, initializing it with defaults if
// InitLogger has not yet been called (services/logger.go's GetLogger
// fallback behavior).
func Logger() *zap.SugaredLogger {
	if globalLogger == nil {
		InitLogger("info", true)
	}
	return globalLogger
}

func parseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
