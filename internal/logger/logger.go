package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls log output.
type Options struct {
	Enabled    bool
	Level      string
	File       string
	Console    bool
	JSON       bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var global = zap.NewNop().Sugar()

// Init initializes the global logger.
func Init(opts Options) error {
	if !opts.Enabled {
		global = zap.NewNop().Sugar()
		return nil
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var syncers []zapcore.WriteSyncer
	if opts.File != "" {
		dir := filepath.Dir(opts.File)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
			Compress:   true,
		}))
	}
	if opts.Console || len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), zap.NewAtomicLevelAt(parseLevel(opts.Level)))
	global = zap.New(core).Sugar()
	return nil
}

func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Sync flushes buffered log entries.
func Sync() {
	_ = global.Sync()
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	global.Debugf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	global.Infof(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	global.Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	global.Errorf(format, args...)
}
