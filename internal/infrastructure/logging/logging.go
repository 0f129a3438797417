// Package logging builds the process logger. Components never construct
// loggers themselves; they receive one by constructor injection and derive
// named children from it.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production zap logger tuned by environment variables:
// FLOWENGINE_LOG_LEVEL (debug|info|warn|error, default info) and
// FLOWENGINE_LOG_FORMAT (json|console, default json).
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFromEnv())
	if strings.EqualFold(os.Getenv("FLOWENGINE_LOG_FORMAT"), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}

// NewNop returns a no-op logger for tests and optional dependencies.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

func levelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("FLOWENGINE_LOG_LEVEL")) {
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
