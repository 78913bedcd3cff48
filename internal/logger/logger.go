package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log is the global logger
	Log *zap.SugaredLogger

	// logger is the underlying zap logger
	logger *zap.Logger

	// level is shared by every core so it can change at runtime
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	rotator *lumberjack.Logger
)

// Options configures the logger
type Options struct {
	Level  string
	Format string

	// File enables a rotating JSON log file next to stdout
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func encoderConfig(format string) zapcore.EncoderConfig {
	var ec zapcore.EncoderConfig
	if format == "json" {
		ec = zap.NewProductionEncoderConfig()
	} else {
		ec = zap.NewDevelopmentEncoderConfig()
	}
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.LevelKey = "level"
	ec.MessageKey = "msg"
	ec.CallerKey = "caller"
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return ec
}

// Init initializes the global logger
func Init(opts Options) error {
	zapLevel, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	level.SetLevel(zapLevel)

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig("json"))
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig("text"))
	}
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig("json")),
			zapcore.AddSync(rotator),
			level))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	Log = logger.Sugar()
	return nil
}

// SetLevel changes the level of every sink at runtime
func SetLevel(l string) error {
	zapLevel, err := parseLevel(l)
	if err != nil {
		return err
	}
	if level.Level() != zapLevel {
		level.SetLevel(zapLevel)
		if logger != nil {
			logger.Info("log level changed", zap.String("level", l))
		}
	}
	return nil
}

// Level returns the current level
func Level() zapcore.Level {
	return level.Level()
}

// parseLevel converts string log level to zapcore.Level
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// Sync flushes any buffered log entries and closes the log file
func Sync() error {
	if logger == nil {
		return nil
	}
	err := logger.Sync()
	if rotator != nil {
		if cerr := rotator.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// GetZapLogger returns the underlying zap.Logger, a no-op logger before Init
func GetZapLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
