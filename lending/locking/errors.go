package locking

import "errors"

var (
	// ErrEmptyLockKey is returned when an empty lock key is provided.
	ErrEmptyLockKey = errors.New("lock key must not be empty")

	// ErrNilLockFn is returned when a nil function is passed to WithLock.
	ErrNilLockFn = errors.New("lock function must not be nil")

	// ErrNilRedisClient is returned when NewRedis is called without a client.
	ErrNilRedisClient = errors.New("redis client must not be nil")

	// ErrLockNotAcquired is returned when the distributed lock could not be taken.
	ErrLockNotAcquired = errors.New("failed to acquire lock")

	// ErrLockExpiryInvalid is returned when lock expiry is not positive.
	ErrLockExpiryInvalid = errors.New("lock expiry must be greater than 0")

	// ErrLockTriesInvalid is returned when lock tries is less than 1.
	ErrLockTriesInvalid = errors.New("lock tries must be at least 1")

	// ErrNegativeRetryDelay is returned when the retry delay is negative.
	ErrNegativeRetryDelay = errors.New("lock retry delay must not be negative")
)
