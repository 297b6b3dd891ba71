// Package api exposes the lending engine over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/d-sanghavi/library-management/core"
)

const (
	paramBookID        = "bookID"
	paramLoanID        = "loanID"
	paramReservationID = "reservationID"
	paramUserID        = "userID"

	logMsgRequest       = "http request"
	logMsgEncodeFailed  = "failed to encode response"
	logMsgInternalError = "request failed with internal error"
	logAttrMethod       = "method"
	logAttrPath         = "path"
	logAttrStatus       = "status"
	logAttrDurationMS   = "duration_ms"
	logAttrRequestID    = "request_id"
	logAttrError        = "error"

	defaultRequestTimeout = 30 * time.Second
)

// Lending is the part of lending.Engine the API serves.
type Lending interface {
	AddBook(ctx context.Context, book core.Book) (core.Book, error)
	GetBook(ctx context.Context, bookID core.BookID, now time.Time) (core.Book, error)
	ListBooks(ctx context.Context, now time.Time) ([]core.Book, error)
	Queue(ctx context.Context, bookID core.BookID, now time.Time) (core.QueueView, error)

	BorrowBook(ctx context.Context, bookID core.BookID, userID core.UserID, now time.Time) (core.Loan, error)
	RenewLoan(ctx context.Context, loanID core.LoanID, now time.Time) (core.Loan, error)
	ReturnBook(ctx context.Context, loanID core.LoanID, now time.Time) (core.Loan, error)
	SettleFine(ctx context.Context, loanID core.LoanID, now time.Time) (core.Loan, error)
	DaysUntilDue(ctx context.Context, loanID core.LoanID, now time.Time) (int, error)

	ReserveBook(ctx context.Context, bookID core.BookID, userID core.UserID, now time.Time) (core.Reservation, error)
	CancelReservation(ctx context.Context, reservationID core.ReservationID, now time.Time) (core.Reservation, error)

	Account(ctx context.Context, userID core.UserID, now time.Time) (core.Account, error)
}

// Server routes HTTP requests to the lending engine.
type Server struct {
	lending        Lending
	clock          func() time.Time
	logger         *slog.Logger
	metrics        http.Handler
	health         func(ctx context.Context) error
	requestTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces the server clock used as "now" for every operation.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithLogger enables request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts handler at /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithHealthCheck makes /healthz report 503 while check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.health = check
	}
}

// WithRequestTimeout bounds the time a request may take.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

// NewServer creates a Server.
func NewServer(lending Lending, options ...Option) *Server {
	s := &Server{
		lending:        lending,
		clock:          func() time.Time { return time.Now().UTC() },
		requestTimeout: defaultRequestTimeout,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/healthz", s.handleHealth)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Post("/", s.handleAddBook)

			r.Route("/{bookID}", func(r chi.Router) {
				r.Get("/", s.handleGetBook)
				r.Get("/queue", s.handleQueue)
				r.Post("/loans", s.handleBorrow)
				r.Post("/reservations", s.handleReserve)
			})
		})

		r.Route("/loans/{loanID}", func(r chi.Router) {
			r.Post("/renew", s.handleRenew)
			r.Post("/return", s.handleReturn)
			r.Post("/settle", s.handleSettle)
			r.Get("/due", s.handleDaysUntilDue)
		})

		r.Delete("/reservations/{reservationID}", s.handleCancelReservation)
		r.Get("/users/{userID}/account", s.handleAccount)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	if s.logger == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), logMsgRequest,
			logAttrMethod, r.Method,
			logAttrPath, r.URL.Path,
			logAttrStatus, ww.Status(),
			logAttrRequestID, middleware.GetReqID(r.Context()),
			logAttrDurationMS, float64(time.Since(start).Microseconds())/1000)
	})
}
