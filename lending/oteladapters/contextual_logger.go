package oteladapters

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/trace"

	"github.com/d-sanghavi/library-management/lending"
)

const (
	logAttrTraceID = "trace_id"
	logAttrSpanID  = "span_id"
)

// SlogBridgeLogger implements lending.Logger and lending.ContextualLogger on top of the
// OpenTelemetry slog bridge. Records emitted inside an engine span carry its trace and span ids.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a logger that emits every record to the global OpenTelemetry
// LoggerProvider and, when handler is not nil, also to handler with trace_id and span_id attributes
// taken from the active span.
func NewSlogBridgeLogger(name string, handler slog.Handler) *SlogBridgeLogger {
	handlers := fanoutHandler{otelslog.NewHandler(name)}
	if handler != nil {
		handlers = append(handlers, traceCorrelatingHandler{next: handler})
	}

	return &SlogBridgeLogger{logger: slog.New(handlers)}
}

// Debug logs a debug message.
func (l *SlogBridgeLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs an info message.
func (l *SlogBridgeLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs a warning message.
func (l *SlogBridgeLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs an error message.
func (l *SlogBridgeLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// DebugContext logs a debug message with context.
func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

// InfoContext logs an info message with context.
func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

// WarnContext logs a warning message with context.
func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context.
func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

// fanoutHandler passes each record to every handler that is enabled for its level.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	for _, handler := range h {
		if handler.Enabled(ctx, record.Level) {
			err = errors.Join(err, handler.Handle(ctx, record.Clone()))
		}
	}

	return err
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, 0, len(h))
	for _, handler := range h {
		next = append(next, handler.WithAttrs(attrs))
	}

	return next
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, 0, len(h))
	for _, handler := range h {
		next = append(next, handler.WithGroup(name))
	}

	return next
}

// traceCorrelatingHandler adds the ids of the span in ctx to each record.
type traceCorrelatingHandler struct {
	next slog.Handler
}

func (h traceCorrelatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h traceCorrelatingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(logAttrTraceID, sc.TraceID().String()),
			slog.String(logAttrSpanID, sc.SpanID().String()),
		)
	}

	return h.next.Handle(ctx, record)
}

func (h traceCorrelatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceCorrelatingHandler{next: h.next.WithAttrs(attrs)}
}

func (h traceCorrelatingHandler) WithGroup(name string) slog.Handler {
	return traceCorrelatingHandler{next: h.next.WithGroup(name)}
}

var (
	_ lending.Logger           = (*SlogBridgeLogger)(nil)
	_ lending.ContextualLogger = (*SlogBridgeLogger)(nil)
)
