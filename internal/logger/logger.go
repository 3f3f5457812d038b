// Package logger provides a structured, module-aware logging system built on log/slog.
//
// Components receive a Logger through dependency injection or through a
// package-level GetLogger helper that scopes the global logger to a module:
//
//	log := logger.Global().Module("classifier")
//	log.Info("model loaded",
//	    logger.String("path", modelPath),
//	    logger.Int("labels", len(labels)))
//
// Console output is human-readable text, file output is JSON. Module loggers can be
// nested ("api.rentals") and accumulate fields with With.
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// internKey returns an interned version of the key string so repeated keys share memory.
func internKey(key string) string {
	return unique.Make(key).Value()
}

var (
	errorKey   = internKey("error")
	moduleKey  = internKey("module")
	traceIDKey = internKey("trace_id")
)

// Logger is the centralized logging interface for dependency injection
type Logger interface {
	// Module returns a logger scoped to a specific module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int64 creates a 64-bit integer field.
func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float32 creates a 32-bit float field, used for confidence scores.
func Float32(key string, value float32) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a 64-bit float field.
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an error field with credentials redacted from the message.
// The key is always "error"; a nil error yields a nil value.
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: RedactSensitiveData(err.Error())}
}

// Duration creates a duration field rendered as a human readable string.
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

// Any creates a field with any JSON-serializable value.
// Prefer the typed constructors for simple values.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}

// Secret creates a field whose value is masked, keeping only the last four characters.
func Secret(key, value string) Field {
	return Field{Key: internKey(key), Value: MaskSecret(value)}
}
