// Package logging provides the estimator's structured logger: a thin
// wrapper over zap.SugaredLogger, trimmed down from the teacher's
// multi-appender/registry logger to the handful of methods the
// estimator core actually calls (spec.md §10).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the estimator's logging contract. It is satisfied by
// *zapLogger below, and by any collaborator that wants to substitute its
// own sink (e.g. a test logger that captures entries).
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a production-leveled logger (info and above), JSON-encoded,
// matching the teacher's default production config.
func New() Logger {
	return wrap(zap.NewProductionConfig())
}

// NewDebug builds a debug-leveled logger with a human-readable console
// encoder, matching the teacher's NewDebugLogger.
func NewDebug() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return wrap(cfg)
}

// NewTest builds a logger suitable for use inside *testing.T-driven unit
// tests: it writes to stderr at debug level without requiring a running
// production log pipeline.
func NewTest() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return wrap(cfg)
}

// NewBlank builds a logger that discards everything, for call sites that
// require a Logger but have no interesting collaborator to hand one to.
func NewBlank() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func wrap(cfg zap.Config) Logger {
	z, err := cfg.Build()
	if err != nil {
		return NewBlank()
	}
	return &zapLogger{sugar: z.Sugar()}
}

func (l *zapLogger) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
