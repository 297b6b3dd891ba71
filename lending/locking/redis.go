package locking

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix  = "lending:lock:"
	defaultRedisExpiry     = 10 * time.Second
	defaultRedisTries      = 32
	defaultRedisRetryDelay = 50 * time.Millisecond

	logMsgLockAcquireFailed = "failed to acquire distributed lock"
	logMsgLockReleaseFailed = "failed to release distributed lock"
	logAttrLockKey          = "lock_key"
	logAttrError            = "error"
	logAttrUnlocked         = "unlocked"
)

// Logger is the subset of *slog.Logger the Redis locker reports to.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Redis is a distributed locker backed by redsync.
type Redis struct {
	redsync    *redsync.Redsync
	keyPrefix  string
	expiry     time.Duration
	tries      int
	retryDelay time.Duration
	logger     Logger
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis) error

// WithKeyPrefix sets the prefix put in front of every lock key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) error {
		r.keyPrefix = prefix
		return nil
	}
}

// WithExpiry sets how long a lock lives if its holder dies without releasing it.
func WithExpiry(expiry time.Duration) RedisOption {
	return func(r *Redis) error {
		if expiry <= 0 {
			return ErrLockExpiryInvalid
		}

		r.expiry = expiry

		return nil
	}
}

// WithTries sets how many times acquiring is attempted before giving up.
func WithTries(tries int) RedisOption {
	return func(r *Redis) error {
		if tries < 1 {
			return ErrLockTriesInvalid
		}

		r.tries = tries

		return nil
	}
}

// WithRetryDelay sets the pause between acquire attempts.
func WithRetryDelay(delay time.Duration) RedisOption {
	return func(r *Redis) error {
		if delay < 0 {
			return ErrNegativeRetryDelay
		}

		r.retryDelay = delay

		return nil
	}
}

// WithLogger sets the logger for acquire and release failures.
func WithLogger(logger Logger) RedisOption {
	return func(r *Redis) error {
		r.logger = logger
		return nil
	}
}

// NewRedis creates a Redis locker on top of client.
func NewRedis(client goredislib.UniversalClient, options ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, ErrNilRedisClient
	}

	r := &Redis{
		redsync:    redsync.New(goredis.NewPool(client)),
		keyPrefix:  defaultRedisKeyPrefix,
		expiry:     defaultRedisExpiry,
		tries:      defaultRedisTries,
		retryDelay: defaultRedisRetryDelay,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// WithLock runs fn while holding the distributed lock for key.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if key == "" {
		return ErrEmptyLockKey
	}

	if fn == nil {
		return ErrNilLockFn
	}

	lockKey := r.keyPrefix + key
	mutex := r.redsync.NewMutex(
		lockKey,
		redsync.WithExpiry(r.expiry),
		redsync.WithTries(r.tries),
		redsync.WithRetryDelay(r.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if r.logger != nil {
			r.logger.Error(logMsgLockAcquireFailed, logAttrLockKey, lockKey, logAttrError, err.Error())
		}

		return errors.Join(ErrLockNotAcquired, err)
	}

	defer func() {
		// release even when the caller's context was cancelled meanwhile
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			if r.logger != nil {
				r.logger.Warn(logMsgLockReleaseFailed, logAttrLockKey, lockKey, logAttrUnlocked, ok, logAttrError, err)
			}
		}
	}()

	return fn(ctx)
}
