// Package logger provides the process-wide sugared zap logger used for
// lifecycle and operational messages.
package logger

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(zap.NewNop().Sugar())
}

// Initialize builds the global logger at the given level ("debug", "info",
// "warn" or "error"). Output is JSON unless UNSTRUCTURED_LOGS is true, in
// which case a console encoder is used.
func Initialize(level string) {
	current.Store(newLogger(level, unstructured(), zapcore.Lock(os.Stderr)))
}

// Set replaces the global logger. Tests use it with zaptest or observer cores.
func Set(l *zap.Logger) {
	current.Store(l.Sugar())
}

// Get returns the global logger
func Get() *zap.SugaredLogger {
	return current.Load()
}

func newLogger(level string, console bool, out zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if console {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, out, parseLevel(level))
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func unstructured() bool {
	v, err := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS"))
	return err == nil && v
}

// Sync flushes buffered log entries
func Sync() {
	_ = current.Load().Sync()
}

// Debug logs a message at debug level
func Debug(msg string) { current.Load().Debug(msg) }

// Debugf logs a formatted message at debug level
func Debugf(msg string, args ...any) { current.Load().Debugf(msg, args...) }

// Info logs a message at info level
func Info(msg string) { current.Load().Info(msg) }

// Infof logs a formatted message at info level
func Infof(msg string, args ...any) { current.Load().Infof(msg, args...) }

// Infow logs a message with key/value pairs at info level
func Infow(msg string, keysAndValues ...any) { current.Load().Infow(msg, keysAndValues...) }

// Warn logs a message at warn level
func Warn(msg string) { current.Load().Warn(msg) }

// Warnf logs a formatted message at warn level
func Warnf(msg string, args ...any) { current.Load().Warnf(msg, args...) }

// Warnw logs a message with key/value pairs at warn level
func Warnw(msg string, keysAndValues ...any) { current.Load().Warnw(msg, keysAndValues...) }

// Error logs a message at error level
func Error(msg string) { current.Load().Error(msg) }

// Errorf logs a formatted message at error level
func Errorf(msg string, args ...any) { current.Load().Errorf(msg, args...) }

// Errorw logs a message with key/value pairs at error level
func Errorw(msg string, keysAndValues ...any) { current.Load().Errorw(msg, keysAndValues...) }

// Fatalf logs a formatted message and exits the process
func Fatalf(msg string, args ...any) { current.Load().Fatalf(msg, args...) }
