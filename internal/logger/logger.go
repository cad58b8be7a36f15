package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps the zap logger with additional functionality.
type Logger struct {
	*zap.Logger
}

// Config controls the level and the optional rotating file sink.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// File enables a rotating log file in addition to stdout.
	File string `json:"file" yaml:"file"`
	// MaxSize is the size in megabytes before the file is rotated.
	MaxSize int `json:"max_size" yaml:"max_size"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `json:"max_backups" yaml:"max_backups"`
	// MaxAge is the number of days rotated files are kept.
	MaxAge int `json:"max_age" yaml:"max_age"`
	// Compress gzips rotated files.
	Compress bool `json:"compress" yaml:"compress"`
}

// NewLogger creates a new logger instance with production configuration.
func NewLogger() (*Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: zapLogger,
	}, nil
}

// NewLoggerWithConfig builds a JSON logger writing to stdout and, when
// cfg.File is set, to a lumberjack-rotated file as well.
func NewLoggerWithConfig(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	zapLogger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)

	return &Logger{
		Logger: zapLogger,
	}, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{
		Logger: zap.NewNop(),
	}
}

// ParseLevel converts a level name into a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}

	return zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l.Logger != nil {
		return l.Logger.Sync()
	}

	return nil
}
