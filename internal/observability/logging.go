// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the global structured logger instance used throughout the application.
var Logger *slog.Logger

type contextKey string

// Context keys picked up by the context-aware handler.
const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", rid))
	}
	if uid, ok := ctx.Value(UserIDKey).(uint); ok {
		r.AddAttrs(slog.Any("user_id", uid))
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"))
}

// NewLogger builds a context-aware logger: JSON in production, text elsewhere.
func NewLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo
	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(&ctxHandler{handler})
}

// SetLogger replaces the global logger, e.g. to silence output in a terminal UI.
func SetLogger(l *slog.Logger) {
	if l != nil {
		Logger = l
	}
}

// WithRequestID returns a new context with the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// ExtractRequestID retrieves the request ID from the context.
func ExtractRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ComponentLogger provides structured logging for one engine component.
type ComponentLogger struct {
	component string
}

// NewComponentLogger creates a ComponentLogger tagged with component.
func NewComponentLogger(component string) *ComponentLogger {
	return &ComponentLogger{component: component}
}

func (l *ComponentLogger) attrs(operation string, fields map[string]any) []any {
	attrs := []any{
		slog.String("component", l.component),
		slog.String("operation", operation),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// Info logs a successful operation.
func (l *ComponentLogger) Info(ctx context.Context, operation string, fields map[string]any) {
	Logger.InfoContext(ctx, l.component+" "+operation, l.attrs(operation, fields)...)
}

// Warn logs a recoverable failure.
func (l *ComponentLogger) Warn(ctx context.Context, operation string, err error, fields map[string]any) {
	attrs := l.attrs(operation, fields)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	Logger.WarnContext(ctx, l.component+" "+operation+" failed", attrs...)
}

// Error logs a failure the caller cannot recover from.
func (l *ComponentLogger) Error(ctx context.Context, operation string, err error, fields map[string]any) {
	attrs := l.attrs(operation, fields)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	Logger.ErrorContext(ctx, l.component+" "+operation+" failed", attrs...)
}
