// Package logging provides the structured logger used throughout the tracker.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger interface used across the tracker. It is a
// trimmed version of the logger rdk components use: a handful of leveled,
// structured methods plus a context-aware variant for call sites that want
// the active frame/device id folded into every line without re-deriving it.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})
	CWarnw(ctx context.Context, msg string, keysAndValues ...interface{})

	With(keysAndValues ...interface{}) Logger
	Named(name string) Logger
}

type impl struct {
	zap *zap.SugaredLogger
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger("startup")
)

// ReplaceGlobal replaces the package-level global logger.
func ReplaceGlobal(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// Global returns the package-level global logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func newConfig() zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.DebugLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a new console logger named name.
func NewLogger(name string) Logger {
	cfg := newConfig()
	base, err := cfg.Build()
	if err != nil {
		// the console encoder config above is static and known-good; a
		// build failure here means the zap API changed underneath us.
		panic(err)
	}
	return &impl{base.Named(name).Sugar()}
}

// NewTestLogger returns a logger suitable for use in tests.
func NewTestLogger() Logger {
	return NewLogger("test")
}

func (l *impl) Debugw(msg string, kv ...interface{}) { l.zap.Debugw(msg, kv...) }
func (l *impl) Infow(msg string, kv ...interface{})  { l.zap.Infow(msg, kv...) }
func (l *impl) Warnw(msg string, kv ...interface{})  { l.zap.Warnw(msg, kv...) }
func (l *impl) Errorw(msg string, kv ...interface{}) { l.zap.Errorw(msg, kv...) }

type ctxKey int

const traceKey ctxKey = iota

// WithTrace annotates ctx so that CDebugw/CWarnw calls made with it carry
// extra key/value pairs (typically a frame id or device id) automatically.
func WithTrace(ctx context.Context, keysAndValues ...interface{}) context.Context {
	return context.WithValue(ctx, traceKey, keysAndValues)
}

func (l *impl) CDebugw(ctx context.Context, msg string, kv ...interface{}) {
	l.zap.Debugw(msg, append(traceFields(ctx), kv...)...)
}

func (l *impl) CWarnw(ctx context.Context, msg string, kv ...interface{}) {
	l.zap.Warnw(msg, append(traceFields(ctx), kv...)...)
}

func traceFields(ctx context.Context) []interface{} {
	if v, ok := ctx.Value(traceKey).([]interface{}); ok {
		return v
	}
	return nil
}

func (l *impl) With(kv ...interface{}) Logger {
	return &impl{l.zap.With(kv...)}
}

func (l *impl) Named(name string) Logger {
	return &impl{l.zap.Named(name)}
}
