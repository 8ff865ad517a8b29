// Package logger is the process-wide structured logger. Call sites pass a
// message followed by alternating key/value pairs:
//
//	logger.Info("coupon issued", "coupon_id", c.ID, "user_email", u.Email)
//
// Values whose key mentions an email, and any email-shaped substring in
// other string values, are masked before they reach the encoder.
package logger

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// ParseLevel maps "debug", "info", "warn" and "error" to a Level; anything
// else is INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps a zap sugared logger with PII redaction.
type Logger struct {
	sugar     *zap.SugaredLogger
	redactPII bool
}

// New builds a JSON logger writing to stderr at the given level.
func New(level Level, redactPII bool) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zap())
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = level != DEBUG
	z, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar(), redactPII: redactPII}
}

// NewWithCore builds a logger on an arbitrary zap core (tests use the
// observer core).
func NewWithCore(core zapcore.Core, redactPII bool) *Logger {
	return &Logger{sugar: zap.New(core, zap.AddCallerSkip(2)).Sugar(), redactPII: redactPII}
}

var (
	mu            sync.RWMutex
	defaultLogger = New(INFO, true)
)

// SetDefault replaces the package-level logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// Default returns the package-level logger.
func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Sync flushes buffered entries of the default logger.
func Sync() { _ = Default().sugar.Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { Default().log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { Default().log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { Default().log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { Default().log(ERROR, msg, fields...) }

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	kv := make([]interface{}, 0, len(fields))
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		kv = append(kv, key, l.value(key, fields[i+1]))
	}

	switch level {
	case DEBUG:
		l.sugar.Debugw(msg, kv...)
	case WARN:
		l.sugar.Warnw(msg, kv...)
	case ERROR:
		l.sugar.Errorw(msg, kv...)
	default:
		l.sugar.Infow(msg, kv...)
	}
}

func (l *Logger) value(key string, v interface{}) interface{} {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case error:
		if t == nil {
			return nil
		}
		s = t.Error()
	case fmt.Stringer:
		s = t.String()
	default:
		return v
	}
	if l.redactPII {
		s = redactPIIValue(key, s)
	}
	return s
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	if strings.Contains(strings.ToLower(key), "email") {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
