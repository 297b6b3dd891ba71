package lending

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/d-sanghavi/library-management/core"
)

const (
	defaultMaxAttempts  = 2
	defaultBaseDelay    = 5 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrNilStore is returned when NewEngine is called without a store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrNilLocker is returned when a nil locker is provided to WithLocker.
	ErrNilLocker = errors.New("locker must not be nil")

	// ErrNilIDGenerator is returned when a nil id generator is provided.
	ErrNilIDGenerator = errors.New("id generator must not be nil")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrGeneratingIDFailed is returned when a new loan or reservation id could not be created.
	ErrGeneratingIDFailed = errors.New("generating id failed")
)

// IDGenerator returns a new unique id for loans and reservations.
type IDGenerator func() (string, error)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithPolicy replaces the default lending policy.
func WithPolicy(policy core.Policy) Option {
	return func(e *Engine) error {
		if err := policy.Validate(); err != nil {
			return err
		}

		e.policy = policy

		return nil
	}
}

// WithLocker replaces the default in-process per-book locker, e.g. with a distributed one.
func WithLocker(locker Locker) Option {
	return func(e *Engine) error {
		if locker == nil {
			return ErrNilLocker
		}

		e.locker = locker

		return nil
	}
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(generator IDGenerator) Option {
	return func(e *Engine) error {
		if generator == nil {
			return ErrNilIDGenerator
		}

		e.newID = generator

		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Info level: completed and rejected operations with their durations.
// Warn level: concurrency conflicts that are retried.
// Error level: store and infrastructure failures.
// Debug level: lazily expired holds.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector MetricsCollector) Option {
	return func(e *Engine) error {
		e.metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
func WithTracing(collector TracingCollector) Option {
	return func(e *Engine) error {
		e.tracing = collector
		return nil
	}
}

// WithConflictRetries sets how many times an operation is attempted in total when the store
// reports a concurrency conflict. The default of 2 retries once.
func WithConflictRetries(maxAttempts int) Option {
	return func(e *Engine) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		e.retry.maxAttempts = maxAttempts

		return nil
	}
}

// WithRetryBackoff sets the delay before a retry: baseDelay, baseDelay*2, ... plus up to
// jitterFactor of it at random.
func WithRetryBackoff(baseDelay time.Duration, jitterFactor float64) Option {
	return func(e *Engine) error {
		if baseDelay < 0 {
			return ErrNegativeBaseDelay
		}

		if jitterFactor < 0.0 || jitterFactor > 1.0 {
			return ErrInvalidJitterFactor
		}

		e.retry.baseDelay = baseDelay
		e.retry.jitterFactor = jitterFactor

		return nil
	}
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}
