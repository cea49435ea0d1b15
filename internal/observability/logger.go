package observability

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents log severity
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
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

// ParseLevel maps a LOG_LEVEL value to a LogLevel, defaulting to info
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a leveled key=value logger that picks up trace context
type Logger struct {
	mu          sync.RWMutex
	out         *log.Logger
	minLevel    LogLevel
	fields      map[string]interface{}
	serviceName string
}

var defaultLogger *Logger
var loggerOnce sync.Once

// NewLogger creates a new structured logger writing to stdout
func NewLogger(serviceName string, minLevel LogLevel) *Logger {
	return &Logger{
		out:         log.New(os.Stdout, "", 0),
		minLevel:    minLevel,
		fields:      make(map[string]interface{}),
		serviceName: serviceName,
	}
}

// GetLogger returns the process-wide logger configured from SERVICE_NAME and LOG_LEVEL
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		serviceName := os.Getenv("SERVICE_NAME")
		if serviceName == "" {
			serviceName = "sketchstacker-server"
		}
		defaultLogger = NewLogger(serviceName, ParseLevel(os.Getenv("LOG_LEVEL")))
	})
	return defaultLogger
}

// SetOutput redirects the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = log.New(w, "", 0)
}

// SetLevel changes the minimum level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

func (l *Logger) with(extra map[string]interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}

	return &Logger{
		out:         l.out,
		minLevel:    l.minLevel,
		fields:      fields,
		serviceName: l.serviceName,
	}
}

// WithField returns a child logger with one extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(map[string]interface{}{key: value})
}

// WithFields returns a child logger with extra fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(fields)
}

// WithAttrs adds OpenTelemetry attributes as log fields, so spans and logs share keys
func (l *Logger) WithAttrs(attrs ...attribute.KeyValue) *Logger {
	fields := make(map[string]interface{}, len(attrs))
	for _, a := range attrs {
		fields[string(a.Key)] = a.Value.Emit()
	}
	return l.with(fields)
}

// WithContext adds trace_id and span_id when ctx carries a valid span
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}
	return l.with(map[string]interface{}{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	})
}

func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(msg string) { l.log(LevelInfo, msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(msg string) { l.log(LevelWarn, msg) }

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level LogLevel, msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if level < l.minLevel {
		return
	}

	_, file, line, _ := runtime.Caller(2)
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}

	// Fields are sorted so lines are stable for grep and tests.
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s:%d %s",
		time.Now().Format("2006/01/02 15:04:05"),
		level.String(),
		file,
		line,
		msg,
	)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
	}

	l.out.Println(b.String())
}

// Package-level shortcuts to the default logger

func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

func WithContext(ctx context.Context) *Logger {
	return GetLogger().WithContext(ctx)
}

// Attribute helpers for common fields

func ObjectKey(key string) attribute.KeyValue {
	return attribute.String("object_key", key)
}

func SessionID(id string) attribute.KeyValue {
	return attribute.String("session_id", id)
}

func Year(year int) attribute.KeyValue {
	return attribute.Int("year", year)
}

func ItemCount(n int) attribute.KeyValue {
	return attribute.Int("item_count", n)
}

func Backend(name string) attribute.KeyValue {
	return attribute.String("storage_backend", name)
}

func Duration(d time.Duration) attribute.KeyValue {
	return attribute.Int64("duration_ms", d.Milliseconds())
}
