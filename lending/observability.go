package lending

import (
	"context"
	"time"
)

// Logger interface for operational logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger is used instead of Logger when the configured logger also implements it,
// so that trace ids from ctx end up in the log records.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for operation durations and counters.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for creating one span per engine operation.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Metric names.
const (
	OperationDurationMetric  = "lending_operation_duration_seconds"
	OperationsMetric         = "lending_operations_total"
	ConflictRetriesMetric    = "lending_conflict_retries_total"
	ConflictsExhaustedMetric = "lending_conflicts_exhausted_total"
	RetryDelayMetric         = "lending_conflict_retry_delay_seconds"
)

// Label keys and values used for metrics and span attributes.
const (
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelKind      = "kind"
	LabelAttempt   = "attempt"

	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusConflict = "conflict"
	StatusError    = "error"
)

const (
	spanPrefix = "lending."

	logMsgOperationSucceeded = "lending operation succeeded"
	logMsgOperationRejected  = "lending operation rejected"
	logMsgOperationFailed    = "lending operation failed"
	logMsgConflictRetry      = "concurrency conflict, retrying with fresh state"
	logMsgHoldExpired        = "expired hold swept"

	logAttrOperation     = "operation"
	logAttrBookID        = "book_id"
	logAttrUserID        = "user_id"
	logAttrLoanID        = "loan_id"
	logAttrReservationID = "reservation_id"
	logAttrKind          = "kind"
	logAttrError         = "error"
	logAttrDurationMS    = "duration_ms"
	logAttrAttempt       = "attempt"
)

const (
	opBorrow       = "borrow_book"
	opRenew        = "renew_loan"
	opReturn       = "return_book"
	opReserve      = "reserve_book"
	opCancel       = "cancel_reservation"
	opSettleFine   = "settle_fine"
	opAddBook      = "add_book"
	opGetBook      = "get_book"
	opListBooks    = "list_books"
	opQueue        = "queue"
	opAccount      = "account"
	opDaysUntilDue = "days_until_due"
)
