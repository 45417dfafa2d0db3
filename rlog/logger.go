// Package rlog provides structured logging for the recorder core.
//
// It wraps zap so that every log line carries session/topic context
// consistently, the way the rest of the recorder's domain stack carries
// its own identity fields.
package rlog

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoder.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Level mirrors the config's level names (trace maps to zap's Debug, the
// closest zap has).
type Level string

// Supported levels.
const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelTrace, LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps a zap.Logger with recorder-specific field helpers.
type Logger struct {
	zap *zap.Logger
}

// New creates a Logger writing to os.Stderr at the given level/format.
func New(level Level, format Format) *Logger {
	return newWithWriter(level, format, os.Stderr)
}

// newWithWriter creates a Logger writing to an arbitrary writer; New calls
// it with os.Stderr.
func newWithWriter(level Level, format Format, w io.Writer) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	var encoder zapcore.Encoder
	if format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level.zapLevel())
	return &Logger{zap: zap.New(core)}
}

// With returns a child logger carrying additional structured fields for the
// remainder of its lifetime — used to bind session_id/topic once per
// subsystem instead of repeating them on every call.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{zap: l.zap.With(zap.Any("fields", fields))}
}

// Debug logs a debug-level message with structured fields.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info-level message with structured fields.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning-level message with structured fields.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error-level message with structured fields.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered log entries; call on shutdown.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Nop returns a Logger that discards everything, for tests that pass a
// logger parameter but don't want to assert on its output.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}
