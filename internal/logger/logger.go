// Package logger holds the process-wide zap logger.
package logger

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log          atomic.Pointer[zap.Logger]
	sentryClient *sentry.Client
)

func init() {
	log.Store(zap.NewNop())
}

// Config holds logger configuration.
type Config struct {
	Debug     bool
	SentryDSN string
	// Environment is reported to Sentry.
	Environment string
	Tags        map[string]string
}

// Initialize builds the global logger. Error-level entries are forwarded to
// Sentry when a DSN is configured.
func Initialize(cfg Config) error {
	zapConfig := zap.NewProductionConfig()
	if cfg.Debug {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	base, err := zapConfig.Build()
	if err != nil {
		return err
	}

	if cfg.SentryDSN == "" {
		log.Store(base)
		return nil
	}

	sentryClient, err = sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return err
	}

	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags:              cfg.Tags,
	}, zapsentry.NewSentryClientFromClient(sentryClient))
	if err != nil {
		return err
	}

	log.Store(zapsentry.AttachCoreToLogger(core, base))
	return nil
}

// Set replaces the global logger. Intended for tests.
func Set(l *zap.Logger) {
	log.Store(l)
}

// Flush syncs the logger and waits for buffered Sentry events.
func Flush(timeout time.Duration) {
	_ = Default().Sync()
	if sentryClient != nil {
		sentryClient.Flush(timeout)
	}
}

// Default returns the global logger.
func Default() *zap.Logger {
	return log.Load()
}

// Named returns a child of the global logger.
func Named(name string) *zap.Logger {
	return Default().Named(name)
}

// FromContext returns the global logger scoped to ctx for Sentry.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil || sentryClient == nil {
		return Default()
	}
	return Default().With(zapsentry.Context(ctx))
}

func Info(msg string, fields ...zap.Field) {
	Default().Info(msg, fields...)
}

func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Default().Warn(msg, fields...)
}

func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Warn(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Default().Debug(msg, fields...)
}

// Error logs err as the message. A nil err logs a generic message.
func Error(err error, fields ...zap.Field) {
	Default().Error(errMessage(err), fields...)
}

func ErrorCtx(ctx context.Context, err error, fields ...zap.Field) {
	FromContext(ctx).Error(errMessage(err), fields...)
}

func errMessage(err error) string {
	if err == nil {
		return "error occurred"
	}
	return err.Error()
}
