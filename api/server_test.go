package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-sanghavi/library-management/api"
	"github.com/d-sanghavi/library-management/core"
	"github.com/d-sanghavi/library-management/lending"
	"github.com/d-sanghavi/library-management/lending/memstore"
	"github.com/d-sanghavi/library-management/lending/promadapters"
)

const days = 24 * time.Hour

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	*httptest.Server
	clock *testClock
}

func givenServer(t *testing.T, options ...api.Option) testServer {
	t.Helper()

	store := memstore.New()
	for _, book := range []core.Book{
		{ID: "1", Title: "The Great Gatsby", Availability: core.Available},
		{ID: "5", Title: "1984", Availability: core.Available},
	} {
		require.NoError(t, store.InsertBook(context.Background(), book))
	}

	engine, err := lending.NewEngine(store)
	require.NoError(t, err)

	return givenServerFor(t, engine, options...)
}

func givenServerFor(t *testing.T, engine api.Lending, options ...api.Option) testServer {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	options = append([]api.Option{api.WithClock(clock.Now)}, options...)

	server := httptest.NewServer(api.NewServer(engine, options...).Handler())
	t.Cleanup(server.Close)

	return testServer{Server: server, clock: clock}
}

func (s testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, s.URL+path, reader)
	require.NoError(t, err)

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))

	return v
}

type errorBody struct {
	Error string         `json:"error"`
	Kind  core.ErrorKind `json:"kind"`
}

func assertError(t *testing.T, resp *http.Response, status int, kind core.ErrorKind) {
	t.Helper()

	assert.Equal(t, status, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, kind, body.Kind)
	assert.NotEmpty(t, body.Error)
}

func Test_BorrowReserveReturn_OverHTTP(t *testing.T) {
	server := givenServer(t)

	// borrow
	resp := server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{"user_id": "U1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loan := decode[core.Loan](t, resp)
	assert.Equal(t, core.UserID("U1"), loan.UserID)

	// a second borrower is turned away
	resp = server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{"user_id": "U2"})
	assertError(t, resp, http.StatusConflict, core.KindNotAvailable)

	// reserve
	resp = server.do(t, http.MethodPost, "/v1/books/5/reservations", map[string]string{"user_id": "U2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reservation := decode[core.Reservation](t, resp)
	assert.Equal(t, 1, reservation.Position)

	// renewal is blocked by the queue
	resp = server.do(t, http.MethodPost, "/v1/loans/"+string(loan.ID)+"/renew", nil)
	assertError(t, resp, http.StatusConflict, core.KindRenewalBlocked)

	// return three days late
	server.clock.Advance(17 * days)
	resp = server.do(t, http.MethodPost, "/v1/loans/"+string(loan.ID)+"/return", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	returned := decode[core.Loan](t, resp)
	assert.True(t, decimal.RequireFromString("1.5").Equal(returned.Fine))

	// the head of the queue holds the book
	resp = server.do(t, http.MethodGet, "/v1/books/5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.Reserved, decode[core.Book](t, resp).Availability)

	resp = server.do(t, http.MethodGet, "/v1/books/5/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[core.QueueView](t, resp)
	require.NotNil(t, view.Hold)
	assert.Equal(t, core.UserID("U2"), view.Hold.UserID)
	assert.Empty(t, view.Reservations)

	// the fine is settled
	resp = server.do(t, http.MethodPost, "/v1/loans/"+string(loan.ID)+"/settle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, decode[core.Loan](t, resp).FineSettledAt)

	resp = server.do(t, http.MethodPost, "/v1/loans/"+string(loan.ID)+"/settle", nil)
	assertError(t, resp, http.StatusConflict, core.KindNoOutstandingFine)
}

func Test_ListBooks(t *testing.T) {
	server := givenServer(t)

	resp := server.do(t, http.MethodGet, "/v1/books", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	books := decode[[]core.Book](t, resp)
	require.Len(t, books, 2)
	assert.Equal(t, core.BookID("1"), books[0].ID)
	assert.Equal(t, core.BookID("5"), books[1].ID)
}

func Test_AddBook(t *testing.T) {
	server := givenServer(t)

	resp := server.do(t, http.MethodPost, "/v1/books", core.Book{ID: "7", Title: "Dune", Author: "Frank Herbert"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, core.Available, decode[core.Book](t, resp).Availability)

	resp = server.do(t, http.MethodPost, "/v1/books", core.Book{ID: "7", Title: "Dune"})
	assertError(t, resp, http.StatusConflict, core.KindBookExists)

	resp = server.do(t, http.MethodPost, "/v1/books", core.Book{ID: "8"})
	assertError(t, resp, http.StatusBadRequest, core.KindInvalidArgument)
}

func Test_DaysUntilDue(t *testing.T) {
	server := givenServer(t)

	resp := server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{"user_id": "U1"})
	loan := decode[core.Loan](t, resp)
	server.clock.Advance(12 * days)

	resp = server.do(t, http.MethodGet, "/v1/loans/"+string(loan.ID)+"/due", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.InDelta(t, 2, body["days_until_due"], 0)
	assert.Equal(t, string(core.DueSoon), body["due_status"])
}

func Test_CancelReservation(t *testing.T) {
	server := givenServer(t)

	server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{"user_id": "U1"})
	resp := server.do(t, http.MethodPost, "/v1/books/5/reservations", map[string]string{"user_id": "U2"})
	reservation := decode[core.Reservation](t, resp)

	resp = server.do(t, http.MethodDelete, "/v1/reservations/"+string(reservation.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[core.Reservation](t, resp).IsActive)

	resp = server.do(t, http.MethodDelete, "/v1/reservations/"+string(reservation.ID), nil)
	assertError(t, resp, http.StatusConflict, core.KindReservationAlreadyInactive)
}

func Test_Account(t *testing.T) {
	server := givenServer(t)
	server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{"user_id": "U1"})

	resp := server.do(t, http.MethodGet, "/v1/users/U1/account", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	account := decode[core.Account](t, resp)
	assert.Equal(t, core.UserID("U1"), account.UserID)
	require.Len(t, account.Loans, 1)
	assert.Equal(t, 14, account.Loans[0].DaysUntilDue)
}

func Test_Errors_MapToStatusCodes(t *testing.T) {
	server := givenServer(t)

	resp := server.do(t, http.MethodGet, "/v1/books/404", nil)
	assertError(t, resp, http.StatusNotFound, core.KindNotFound)

	resp = server.do(t, http.MethodPost, "/v1/loans/nope/return", nil)
	assertError(t, resp, http.StatusNotFound, core.KindNotFound)

	resp = server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{})
	assertError(t, resp, http.StatusBadRequest, core.KindInvalidArgument)

	resp = server.do(t, http.MethodPost, "/v1/books/5/reservations", map[string]string{"user_id": "U2"})
	assertError(t, resp, http.StatusConflict, core.KindBookAvailable)
}

func Test_MalformedBody_IsBadRequest(t *testing.T) {
	server := givenServer(t)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL+"/v1/books/5/loans", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assertError(t, resp, http.StatusBadRequest, core.KindInvalidArgument)
}

func Test_ConcurrencyConflict_IsRetryable(t *testing.T) {
	server := givenServerFor(t, failingLending{err: core.ErrConcurrencyConflict})

	resp := server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{"user_id": "U1"})

	assertError(t, resp, http.StatusServiceUnavailable, core.KindConcurrencyConflict)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func Test_InternalError_HidesDetails(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	server := givenServerFor(t, failingLending{err: errors.New("connection refused by 10.0.0.7")}, api.WithLogger(logger))

	resp := server.do(t, http.MethodGet, "/v1/books/5", nil)

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, core.KindInternal, body.Kind)
	assert.NotContains(t, body.Error, "10.0.0.7")
	assert.Contains(t, logs.String(), "10.0.0.7")
	assert.Contains(t, logs.String(), "http request")
}

func Test_Healthz(t *testing.T) {
	server := givenServer(t)
	resp := server.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	unhealthy := givenServer(t, api.WithHealthCheck(func(context.Context) error { return errors.New("db down") }))
	resp = unhealthy.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func Test_Metrics_ExposesEngineMetrics(t *testing.T) {
	// arrange
	registry := prometheus.NewRegistry()
	store := memstore.New()
	require.NoError(t, store.InsertBook(context.Background(), core.Book{ID: "5", Title: "1984", Availability: core.Available}))
	engine, err := lending.NewEngine(store, lending.WithMetrics(promadapters.NewMetricsCollector(registry)))
	require.NoError(t, err)
	server := givenServerFor(t, engine, api.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	server.do(t, http.MethodPost, "/v1/books/5/loans", map[string]string{"user_id": "U1"})

	// act
	resp := server.do(t, http.MethodGet, "/metrics", nil)

	// assert
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), lending.OperationsMetric)
}

// failingLending fails every call with err.
type failingLending struct {
	api.Lending
	err error
}

func (f failingLending) GetBook(context.Context, core.BookID, time.Time) (core.Book, error) {
	return core.Book{}, f.err
}

func (f failingLending) BorrowBook(context.Context, core.BookID, core.UserID, time.Time) (core.Loan, error) {
	return core.Loan{}, f.err
}
