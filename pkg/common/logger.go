package common

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// LogOptions controls where the process logs go. The file core always writes
// JSON through lumberjack, the console core is added outside production.
type LogOptions struct {
	Dir       string
	File      string
	FileLevel zapcore.Level
	Console   bool
	// rotation, MaxSizeMB per file and MaxAgeDays per backup
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LogOptionsFromEnv reads MA_LOG_DIR and MA_LOG_LEVEL, the log directory
// defaults to ./logs.
func LogOptionsFromEnv() (LogOptions, error) {
	opts := LogOptions{
		File:       "proxy.log",
		FileLevel:  zap.InfoLevel,
		Console:    !IsProduction(),
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}

	opts.Dir = os.Getenv(EnvKeyMALogDir)
	if opts.Dir == "" {
		dir, err := os.Getwd()
		if err != nil {
			return opts, fmt.Errorf("getting current directory: %w", err)
		}
		opts.Dir = filepath.Join(dir, "logs")
	}

	if v := os.Getenv(EnvKeyMALogLevel); v != "" {
		level, err := zapcore.ParseLevel(v)
		if err != nil {
			return opts, fmt.Errorf("invalid %s %q: %w", EnvKeyMALogLevel, v, err)
		}
		opts.FileLevel = level
	}
	return opts, nil
}

// NewLogger builds the process logger from opts.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("find/create logs directory: %w", err)
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, opts.File),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true, // gzip
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(logFile),
		opts.FileLevel,
	)
	if opts.Console {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.DebugLevel)
		core = zapcore.NewTee(core, consoleCore)
	}
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func getLogger() *zap.Logger {
	if logger == nil {
		initLogger()
	}
	return logger
}

func GetLogger() *zap.Logger {
	logger = getLogger()
	return logger.Named("default")
}

func GetLoggerWith(name string, fields ...zap.Field) *zap.Logger {
	logger = getLogger()
	return logger.Named(name).With(fields...)
}

func initLogger() {
	once.Do(func() {
		opts, err := LogOptionsFromEnv()
		if err != nil {
			log.Fatalf("Error configuring logger: %v", err)
		}
		if logger, err = NewLogger(opts); err != nil {
			log.Fatalf("Error creating logger: %v", err)
		}
	})
}

// Sync flushes buffered file output, call it once before the process exits.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func SetTestCaptureLogger(buf *bytes.Buffer, level zapcore.Level) {
	_ = GetLogger()

	writer := zapcore.AddSync(buf)
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	core := zapcore.NewCore(encoder, writer, level)
	logger = zap.New(core)
}

func SetTestLoggerNop() {
	_ = GetLogger()

	logger = zap.NewNop()
}
