package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	globalMu sync.RWMutex
	global   = &logger{zl: zap.NewNop()}
)

type logger struct {
	zl *zap.Logger
}

// Init builds the global logger. level is one of debug, info, warn, error.
func Init(level string, asJSON bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger.Init: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	encoding := "console"
	if asJSON {
		encoding = "json"
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zl, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("logger.Init: %w", err)
	}

	SetLogger(zl)
	return nil
}

// SetLogger replaces the global logger, mostly for tests
func SetLogger(zl *zap.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = &logger{zl: zl}
}

// L returns the global logger
func L() *logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// With returns a child of the global logger carrying fields
func With(fields ...Field) *logger {
	return L().With(fields...)
}

// WithContext stores fields in ctx; every log call made with that ctx includes them
func WithContext(ctx context.Context, fields ...Field) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]Field)
	merged := make([]Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

func (l *logger) With(fields ...Field) *logger {
	return &logger{zl: l.zl.With(fields...)}
}

func (l *logger) Sync() error { return l.zl.Sync() }

func (l *logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.zl.Debug(msg, withCtx(ctx, fields)...)
}

func (l *logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.zl.Info(msg, withCtx(ctx, fields)...)
}

func (l *logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.zl.Warn(msg, withCtx(ctx, fields)...)
}

func (l *logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.zl.Error(msg, withCtx(ctx, fields)...)
}

func Debug(ctx context.Context, msg string, fields ...Field) { L().Debug(ctx, msg, fields...) }
func Info(ctx context.Context, msg string, fields ...Field)  { L().Info(ctx, msg, fields...) }
func Warn(ctx context.Context, msg string, fields ...Field)  { L().Warn(ctx, msg, fields...) }
func Error(ctx context.Context, msg string, fields ...Field) { L().Error(ctx, msg, fields...) }

func withCtx(ctx context.Context, fields []Field) []Field {
	if ctx == nil {
		return fields
	}
	extra, _ := ctx.Value(ctxKey{}).([]Field)
	if len(extra) == 0 {
		return fields
	}
	out := make([]Field, 0, len(extra)+len(fields))
	out = append(out, extra...)
	return append(out, fields...)
}
