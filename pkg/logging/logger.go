package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

// prevents differences when adding new constants
const loggerKey ctxKey = iota

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
)

// Options selects the encoder and level of a logger.
type Options struct {
	Env   string // "dev"/"development" for console output, anything else for JSON
	Level string // zap level name, empty keeps the config default
}

// OptionsFromEnv reads ENV and LOG_LEVEL.
func OptionsFromEnv() Options {
	return Options{
		Env:   os.Getenv("ENV"),
		Level: os.Getenv("LOG_LEVEL"),
	}
}

// New builds a zap logger for the given options.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config

	if opts.Env == "dev" || opts.Env == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		//to see who calls it
		config.DisableCaller = false
	}

	//adjustable log level so it can change at runtime
	if opts.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(opts.Level)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return config.Build()
}

// NewLogger builds a logger from the environment and exits when that fails.
func NewLogger() *zap.Logger {
	logger, err := New(OptionsFromEnv())
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	return logger
}

// Singleton logger
func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = NewLogger()
	})
	return defaultLogger
}

// attach a logger to context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

//retrieve logger from context

func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return DefaultLogger()
	}

	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if ok && logger != nil {
		return logger
	}
	return DefaultLogger()
}

func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx)
}

// WithFields adds structured fields to the logger in context.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := FromContext(ctx).With(fields...)
	return WithLogger(ctx, logger)
}
