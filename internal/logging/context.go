package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	invocationIDKey ctxKey = iota
	actionKey
)

// WithInvocationID returns a context with the invocation ID set.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey, id)
}

// WithAction returns a context with the action name set.
func WithAction(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actionKey, name)
}

// InvocationID extracts the invocation ID from the context, or "" if absent.
func InvocationID(ctx context.Context) string {
	v, _ := ctx.Value(invocationIDKey).(string)
	return v
}

// Action extracts the action name from the context, or "" if absent.
func Action(ctx context.Context) string {
	v, _ := ctx.Value(actionKey).(string)
	return v
}

// WithIDs sets both correlation values on the context at once.
func WithIDs(ctx context.Context, invocationID, action string) context.Context {
	ctx = WithInvocationID(ctx, invocationID)
	ctx = WithAction(ctx, action)
	return ctx
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := InvocationID(ctx); id != "" {
		logger = logger.With(slog.String("invocation_id", id))
	}
	if name := Action(ctx); name != "" {
		logger = logger.With(slog.String("action", name))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := InvocationID(ctx); v != "" {
		r.AddAttrs(slog.String("invocation_id", v))
	}
	if v := Action(ctx); v != "" {
		r.AddAttrs(slog.String("action", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps a config string onto an slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the process logger: a text handler at the given level wrapped
// with correlation injection.
func New(w io.Writer, level string) *slog.Logger {
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(NewCorrelationHandler(inner))
}
