package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/d-sanghavi/library-management/core"
)

const (
	retryAfterSeconds = "1"
	maxBodyBytes      = 1 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedBody is returned for request bodies that are not valid JSON for the endpoint.
var ErrMalformedBody = errors.New("malformed request body")

type errorResponse struct {
	Error string         `json:"error"`
	Kind  core.ErrorKind `json:"kind"`
}

func (s *Server) loanAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, loanID core.LoanID, now time.Time) (core.Loan, error),
) {

	loan, err := action(r.Context(), core.LoanID(chi.URLParam(r, paramLoanID)), s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, loan)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return errors.Join(ErrMalformedBody, err)
	}

	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil && s.logger != nil {
		s.logger.Warn(logMsgEncodeFailed, logAttrError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	if errors.Is(err, ErrMalformedBody) {
		kind = core.KindInvalidArgument
	}

	status := statusFor(kind)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		if s.logger != nil {
			s.logger.ErrorContext(r.Context(), logMsgInternalError, logAttrPath, r.URL.Path, logAttrError, message)
		}

		message = http.StatusText(http.StatusInternalServerError)
	}

	s.writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInvalidArgument:
		return http.StatusBadRequest
	case core.KindConcurrencyConflict:
		return http.StatusServiceUnavailable
	case core.KindNotAvailable,
		core.KindAlreadyBorrowing,
		core.KindAlreadyReserved,
		core.KindBookAvailable,
		core.KindRenewalLimitReached,
		core.KindRenewalBlocked,
		core.KindLoanAlreadyReturned,
		core.KindReservationAlreadyInactive,
		core.KindNoOutstandingFine,
		core.KindBookExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
