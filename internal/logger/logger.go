package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu     sync.RWMutex
	atom   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newSugar(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout))
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func parseLevel(level string) (Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func newSugar(enc zapcore.Encoder, out zapcore.WriteSyncer) *zap.SugaredLogger {
	return zap.New(zapcore.NewCore(enc, out, atom)).Sugar()
}

// SetLevel changes the minimum level. Unknown levels are ignored.
func SetLevel(level string) {
	if l, ok := parseLevel(level); ok {
		atom.SetLevel(l.zapLevel())
	}
}

// Init rebuilds the logger.
//
// format is "text" or "json"; output is "stdout", "stderr" or a file path
// opened in append mode.
func Init(level, format, output string) error {
	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "", "text":
		enc = zapcore.NewConsoleEncoder(encoderConfig())
	case "json":
		enc = zapcore.NewJSONEncoder(encoderConfig())
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	var out zapcore.WriteSyncer
	switch strings.ToLower(output) {
	case "", "stdout":
		out = zapcore.Lock(os.Stdout)
	case "stderr":
		out = zapcore.Lock(os.Stderr)
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log output: %w", err)
		}
		out = zapcore.Lock(f)
	}

	SetLevel(level)

	mu.Lock()
	logger = newSugar(enc, out)
	mu.Unlock()
	return nil
}

// IsDebugEnabled reports whether debug messages are currently emitted.
func IsDebugEnabled() bool {
	return atom.Enabled(zapcore.DebugLevel)
}

// Sync flushes buffered output.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(format string, v ...any) {
	current().Infof(format, v...)
}

func Warn(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(format string, v ...any) {
	current().Errorf(format, v...)
}
