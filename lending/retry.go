package lending

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/d-sanghavi/library-management/core"
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

// retryOnConflict runs fn until it succeeds, fails with anything but a concurrency conflict,
// or maxAttempts is reached. Each attempt must re-read the state it decides on.
func (e *Engine) retryOnConflict(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.retry.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.retry.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * e.retry.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			if e.metrics != nil {
				e.metrics.RecordDuration(RetryDelayMetric, backoffDelay, map[string]string{
					LabelOperation: operation,
					LabelAttempt:   strconv.Itoa(attempt),
				})
			}

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !errors.Is(lastErr, core.ErrConcurrencyConflict) {
			return lastErr
		}

		if attempt < e.retry.maxAttempts-1 {
			e.logWarn(ctx, logMsgConflictRetry, logAttrOperation, operation, logAttrAttempt, attempt+1)

			if e.metrics != nil {
				e.metrics.IncrementCounter(ConflictRetriesMetric, map[string]string{LabelOperation: operation})
			}
		}
	}

	if e.metrics != nil {
		e.metrics.IncrementCounter(ConflictsExhaustedMetric, map[string]string{LabelOperation: operation})
	}

	return lastErr
}
