package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

var slogLevels = map[LogLevel]slog.Level{
	DebugLevel: slog.LevelDebug,
	InfoLevel:  slog.LevelInfo,
	WarnLevel:  slog.LevelWarn,
	ErrorLevel: slog.LevelError,
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// Logger emits structured JSON log lines. Field chaining returns new
// loggers, so a Logger is safe to share across goroutines.
type Logger struct {
	slog  *slog.Logger
	level LogLevel
}

// NewLogger writes JSON log lines at or above level to output. A nil
// output falls back to stdout.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	lvl, ok := slogLevels[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: lvl})
	return &Logger{slog: slog.New(handler), level: level}
}

func (l *Logger) with(args ...interface{}) *Logger {
	return &Logger{slog: l.slog.With(args...), level: l.level}
}

// WithField attaches a single key/value pair.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(key, value)
}

// WithFields attaches several key/value pairs at once.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// WithError attaches err under the "error" key. Nil is a no-op.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with("error", err.Error())
}

func (l *Logger) Debug(message string) { l.slog.Debug(message) }
func (l *Logger) Info(message string)  { l.slog.Info(message) }
func (l *Logger) Warn(message string)  { l.slog.Warn(message) }
func (l *Logger) Error(message string) { l.slog.Error(message) }

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.slog.Error(fmt.Sprintf(format, args...))
}

type contextKey string

const (
	// RequestIDKey carries the per-request id assigned by the HTTP
	// middleware.
	RequestIDKey contextKey = "request_id"
	// GuildIDKey carries the Discord guild an operation runs against.
	GuildIDKey contextKey = "guild_id"
	// LoggerKey carries a request-scoped logger.
	LoggerKey contextKey = "logger"
)

// WithRequestID stores a request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID returns the request id, or "" when unset.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithGuildID stores a guild id on the context.
func WithGuildID(ctx context.Context, guildID string) context.Context {
	return context.WithValue(ctx, GuildIDKey, guildID)
}

// GetGuildID returns the guild id, or "" when unset.
func GetGuildID(ctx context.Context) string {
	id, _ := ctx.Value(GuildIDKey).(string)
	return id
}

// WithLogger stores a logger on the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger returns the context's logger, or a default info-level
// logger when unset.
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerKey).(*Logger); ok {
		return logger
	}
	return NewLogger(InfoLevel, os.Stdout)
}

// FromContext returns the context's logger with the request and guild
// ids attached as fields when present.
func FromContext(ctx context.Context) *Logger {
	logger := GetLogger(ctx)
	if id := GetRequestID(ctx); id != "" {
		logger = logger.WithField("request_id", id)
	}
	if id := GetGuildID(ctx); id != "" {
		logger = logger.WithField("guild_id", id)
	}
	return logger
}
