package lending_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-sanghavi/library-management/core"
	"github.com/d-sanghavi/library-management/lending"
	"github.com/d-sanghavi/library-management/lending/memstore"
)

const (
	book1984 = core.BookID("5")
	userU1   = core.UserID("U1")
	userU2   = core.UserID("U2")
	userU3   = core.UserID("U3")
	days     = 24 * time.Hour
)

var t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func givenEngine(t *testing.T, store lending.Store, options ...lending.Option) *lending.Engine {
	t.Helper()

	var seq atomic.Int64
	options = append([]lending.Option{
		lending.WithIDGenerator(func() (string, error) {
			return fmt.Sprintf("id-%03d", seq.Add(1)), nil
		}),
		lending.WithRetryBackoff(0, 0),
	}, options...)

	engine, err := lending.NewEngine(store, options...)
	require.NoError(t, err)

	return engine
}

func givenCatalog(t *testing.T) *memstore.Store {
	t.Helper()

	store := memstore.New()
	for _, book := range []core.Book{
		{ID: "1", Title: "The Great Gatsby", Author: "F. Scott Fitzgerald"},
		{ID: book1984, Title: "1984", Author: "George Orwell"},
	} {
		book.Availability = core.Available
		require.NoError(t, store.InsertBook(context.Background(), book))
	}

	return store
}

func givenBorrowed(t *testing.T, engine *lending.Engine, userID core.UserID, at time.Time) core.Loan {
	t.Helper()

	loan, err := engine.BorrowBook(context.Background(), book1984, userID, at)
	require.NoError(t, err)

	return loan
}

func assertAvailability(t *testing.T, engine *lending.Engine, expected core.Availability, at time.Time) {
	t.Helper()

	book, err := engine.GetBook(context.Background(), book1984, at)
	require.NoError(t, err)
	assert.Equal(t, expected, book.Availability)
}

func assertStoreInvariants(t *testing.T, store lending.Store, bookID core.BookID) {
	t.Helper()

	rec, err := store.LoadBook(context.Background(), bookID)
	require.NoError(t, err)

	for i, res := range rec.Queue {
		assert.Equal(t, i+1, res.Position)
	}

	users := map[core.UserID]bool{}
	for _, res := range rec.Queue {
		assert.False(t, users[res.UserID], "user %s queued twice", res.UserID)
		users[res.UserID] = true
	}
}

// conflictingStore fails the next n saves with a concurrency conflict.
type conflictingStore struct {
	lending.Store
	remaining atomic.Int32
	saves     atomic.Int32
}

func (s *conflictingStore) SaveBook(ctx context.Context, rec core.BookRecord) error {
	s.saves.Add(1)
	if s.remaining.Add(-1) >= 0 {
		return core.ErrConcurrencyConflict
	}

	return s.Store.SaveBook(ctx, rec)
}

// noLocker leaves all coordination to the store's version check.
type noLocker struct{}

func (noLocker) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

type recordingMetrics struct {
	mu        sync.Mutex
	counters  map[string]int
	durations map[string]int
	labels    []map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]int{}, durations: map[string]int{}}
}

func (m *recordingMetrics) RecordDuration(metric string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[metric]++
}

func (m *recordingMetrics) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric]++
	m.labels = append(m.labels, labels)
}

func (m *recordingMetrics) RecordValue(string, float64, map[string]string) {}

func (m *recordingMetrics) counter(metric string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metric]
}
