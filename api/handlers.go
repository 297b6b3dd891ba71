package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/d-sanghavi/library-management/core"
)

type userRequest struct {
	UserID core.UserID `json:"user_id"`
}

type daysUntilDueResponse struct {
	LoanID       core.LoanID    `json:"loan_id"`
	DaysUntilDue int            `json:"days_until_due"`
	DueStatus    core.DueStatus `json:"due_status"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}

	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.lending.ListBooks(r.Context(), s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var book core.Book
	if err := decodeBody(w, r, &book); err != nil {
		s.writeError(w, r, err)
		return
	}

	added, err := s.lending.AddBook(r.Context(), book)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.lending.GetBook(r.Context(), core.BookID(chi.URLParam(r, paramBookID)), s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	view, err := s.lending.Queue(r.Context(), core.BookID(chi.URLParam(r, paramBookID)), s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	loan, err := s.lending.BorrowBook(r.Context(), core.BookID(chi.URLParam(r, paramBookID)), req.UserID, s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	reservation, err := s.lending.ReserveBook(r.Context(), core.BookID(chi.URLParam(r, paramBookID)), req.UserID, s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, reservation)
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	s.loanAction(w, r, s.lending.RenewLoan)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	s.loanAction(w, r, s.lending.ReturnBook)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	s.loanAction(w, r, s.lending.SettleFine)
}

func (s *Server) handleDaysUntilDue(w http.ResponseWriter, r *http.Request) {
	loanID := core.LoanID(chi.URLParam(r, paramLoanID))

	days, err := s.lending.DaysUntilDue(r.Context(), loanID, s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, daysUntilDueResponse{
		LoanID:       loanID,
		DaysUntilDue: days,
		DueStatus:    core.ClassifyDue(days),
	})
}

func (s *Server) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	reservation, err := s.lending.CancelReservation(r.Context(), core.ReservationID(chi.URLParam(r, paramReservationID)), s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, reservation)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.lending.Account(r.Context(), core.UserID(chi.URLParam(r, paramUserID)), s.clock())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, account)
}
