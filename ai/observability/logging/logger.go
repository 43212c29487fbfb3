// Package logging carries a request-scoped structured logger through context.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Field keys shared by every chat log line.
const (
	KeyRequestID = "request_id"
	KeySessionID = "session_id"
	KeyUserID    = "user_id"
	KeyProvider  = "provider"
)

// Logger is an immutable slog front end with a fixed set of fields.
// With* methods return a copy.
type Logger struct {
	handler slog.Handler
	attrs   []slog.Attr
}

var defaultLogger = NewLogger(nil)

// NewLogger creates a new logger with the given handler. A nil handler logs
// JSON to stdout at info level.
func NewLogger(h slog.Handler) *Logger {
	if h == nil {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{handler: h}
}

// Default returns the process-wide logger backed by slog.Default.
func Default() *Logger {
	return &Logger{handler: slog.Default().Handler()}
}

// WithField returns a new logger with an additional field. An existing field
// with the same key is replaced.
func (l *Logger) WithField(key string, value any) *Logger {
	attrs := make([]slog.Attr, 0, len(l.attrs)+1)
	for _, a := range l.attrs {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	attrs = append(attrs, slog.Any(key, value))
	return &Logger{handler: l.handler, attrs: attrs}
}

// WithFields returns a new logger with additional fields, applied in the
// order given.
func (l *Logger) WithFields(kv ...any) *Logger {
	out := l
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = out.WithField(key, kv[i+1])
	}
	return out
}

// Field returns the value of a field, if present.
func (l *Logger) Field(key string) (any, bool) {
	for _, a := range l.attrs {
		if a.Key == key {
			return a.Value.Any(), true
		}
	}
	return nil, false
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}

	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.AddAttrs(l.attrs...)
	record.Add(args...)
	_ = l.handler.Handle(ctx, record)
}

// FromContext extracts the logger from context, falling back to the default.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
			return l
		}
	}
	return defaultLogger
}

// ToContext adds the logger to context.
func ToContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// With is shorthand for FromContext(ctx).WithFields(kv...) stored back into ctx.
func With(ctx context.Context, kv ...any) context.Context {
	return ToContext(ctx, FromContext(ctx).WithFields(kv...))
}

type loggerKey struct{}

// SetDefault replaces the fallback logger returned by FromContext.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}
