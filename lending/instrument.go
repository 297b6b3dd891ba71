package lending

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/d-sanghavi/library-management/core"
)

// observation tracks one engine operation for logs, metrics and tracing.
type observation struct {
	engine    *Engine
	operation string
	start     time.Time
	span      SpanContext
	logArgs   []any
}

func (e *Engine) begin(ctx context.Context, operation string, logArgs ...any) (context.Context, *observation) {
	obs := &observation{
		engine:    e,
		operation: operation,
		start:     time.Now(),
		logArgs:   append([]any{logAttrOperation, operation}, logArgs...),
	}

	if e.tracing != nil {
		attrs := map[string]string{LabelOperation: operation}
		for i := 0; i+1 < len(logArgs); i += 2 {
			attrs[fmt.Sprint(logArgs[i])] = fmt.Sprint(logArgs[i+1])
		}

		ctx, obs.span = e.tracing.StartSpan(ctx, spanPrefix+operation, attrs)
	}

	return ctx, obs
}

func (o *observation) end(ctx context.Context, err error) {
	e := o.engine
	duration := time.Since(o.start)
	status := statusOf(err)
	kind := string(core.KindOf(err))

	args := append(o.logArgs, logAttrDurationMS, durationToMilliseconds(duration))

	switch status {
	case StatusSuccess:
		e.logInfo(ctx, logMsgOperationSucceeded, args...)
	case StatusRejected:
		e.logInfo(ctx, logMsgOperationRejected, append(args, logAttrKind, kind, logAttrError, err.Error())...)
	default:
		e.logError(ctx, logMsgOperationFailed, append(args, logAttrKind, kind, logAttrError, err.Error())...)
	}

	if e.metrics != nil {
		labels := map[string]string{LabelOperation: o.operation, LabelStatus: status}
		e.metrics.RecordDuration(OperationDurationMetric, duration, labels)

		counterLabels := map[string]string{LabelOperation: o.operation, LabelStatus: status, LabelKind: kind}
		e.metrics.IncrementCounter(OperationsMetric, counterLabels)
	}

	if e.tracing != nil && o.span != nil {
		attrs := map[string]string{}
		if kind != "" {
			attrs[LabelKind] = kind
		}

		e.tracing.FinishSpan(o.span, status, attrs)
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, core.ErrConcurrencyConflict):
		return StatusConflict
	case core.KindOf(err) == core.KindInternal:
		return StatusError
	default:
		return StatusRejected
	}
}

func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.logger == nil {
		return
	}

	if contextual, ok := e.logger.(ContextualLogger); ok {
		contextual.DebugContext(ctx, msg, args...)
		return
	}

	e.logger.Debug(msg, args...)
}

func (e *Engine) logInfo(ctx context.Context, msg string, args ...any) {
	if e.logger == nil {
		return
	}

	if contextual, ok := e.logger.(ContextualLogger); ok {
		contextual.InfoContext(ctx, msg, args...)
		return
	}

	e.logger.Info(msg, args...)
}

func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger == nil {
		return
	}

	if contextual, ok := e.logger.(ContextualLogger); ok {
		contextual.WarnContext(ctx, msg, args...)
		return
	}

	e.logger.Warn(msg, args...)
}

func (e *Engine) logError(ctx context.Context, msg string, args ...any) {
	if e.logger == nil {
		return
	}

	if contextual, ok := e.logger.(ContextualLogger); ok {
		contextual.ErrorContext(ctx, msg, args...)
		return
	}

	e.logger.Error(msg, args...)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
