package locking

import (
	"context"
	"sync"
)

// Local is an in-process locker with one lock per key. Keys that nobody holds or waits for
// are forgotten, so the number of books does not grow the lock table.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*localLock)}
}

// WithLock runs fn while holding the lock for key. Waiting for the lock stops when ctx is done.
func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if key == "" {
		return ErrEmptyLockKey
	}

	if fn == nil {
		return ErrNilLockFn
	}

	lock := l.retain(key)
	defer l.release(key, lock)

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock.sem }()

	return fn(ctx)
}

func (l *Local) retain(key string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lock
	}

	lock.refs++

	return lock
}

func (l *Local) release(key string, lock *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

// size is the number of keys currently tracked.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
