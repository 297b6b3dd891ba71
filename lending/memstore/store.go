// Package memstore is an in-memory lending.Store. It keeps the optimistic version check of the
// durable stores, so the engine behaves the same on top of it.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/d-sanghavi/library-management/core"
)

type bookRow struct {
	book    core.Book
	hold    *core.Hold
	version int64
}

// Store is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	books        map[core.BookID]*bookRow
	loans        map[core.LoanID]core.Loan
	reservations map[core.ReservationID]core.Reservation
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		books:        make(map[core.BookID]*bookRow),
		loans:        make(map[core.LoanID]core.Loan),
		reservations: make(map[core.ReservationID]core.Reservation),
	}
}

// InsertBook adds a book at version 0.
func (s *Store) InsertBook(_ context.Context, book core.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[book.ID]; ok {
		return core.ErrBookExists
	}

	s.books[book.ID] = &bookRow{book: book}

	return nil
}

// LoadBook returns the lending state of one book.
func (s *Store) LoadBook(_ context.Context, id core.BookID) (core.BookRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.books[id]
	if !ok {
		return core.BookRecord{}, core.ErrBookNotFound
	}

	return s.record(row), nil
}

// ListBooks returns all records ordered by book id.
func (s *Store) ListBooks(_ context.Context) ([]core.BookRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]core.BookRecord, 0, len(s.books))
	for _, row := range s.books {
		records = append(records, s.record(row))
	}

	slices.SortFunc(records, func(a, b core.BookRecord) int { return cmp.Compare(a.Book.ID, b.Book.ID) })

	return records, nil
}

// SaveBook writes the record if nobody saved the book since it was loaded.
func (s *Store) SaveBook(_ context.Context, rec core.BookRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.books[rec.Book.ID]
	if !ok {
		return core.ErrBookNotFound
	}

	if row.version != rec.Version {
		return core.ErrConcurrencyConflict
	}

	row.book = rec.Book
	row.hold = copyHold(rec.Hold)
	row.version++

	changes := rec.Changes()
	for _, loan := range changes.Loans {
		s.loans[loan.ID] = loan
	}

	for _, res := range changes.Reservations {
		s.reservations[res.ID] = res
	}

	return nil
}

// Loan returns a loan by id.
func (s *Store) Loan(_ context.Context, id core.LoanID) (core.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[id]
	if !ok {
		return core.Loan{}, core.ErrLoanNotFound
	}

	return loan, nil
}

// Reservation returns a reservation by id.
func (s *Store) Reservation(_ context.Context, id core.ReservationID) (core.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[id]
	if !ok {
		return core.Reservation{}, core.ErrReservationNotFound
	}

	return res, nil
}

// LoansByUser returns every loan of a user, active or not, oldest first.
func (s *Store) LoansByUser(_ context.Context, userID core.UserID) ([]core.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loans := make([]core.Loan, 0)
	for _, loan := range s.loans {
		if loan.UserID == userID {
			loans = append(loans, loan)
		}
	}

	slices.SortFunc(loans, func(a, b core.Loan) int {
		return cmp.Or(a.BorrowDate.Compare(b.BorrowDate), cmp.Compare(a.ID, b.ID))
	})

	return loans, nil
}

// ReservationsByUser returns every reservation of a user, oldest first.
func (s *Store) ReservationsByUser(_ context.Context, userID core.UserID) ([]core.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]core.Reservation, 0)
	for _, res := range s.reservations {
		if res.UserID == userID {
			reservations = append(reservations, res)
		}
	}

	slices.SortFunc(reservations, func(a, b core.Reservation) int {
		return cmp.Or(a.ReservationDate.Compare(b.ReservationDate), cmp.Compare(a.ID, b.ID))
	})

	return reservations, nil
}

// BooksHeldBy returns the books on which the user has a stored hold, expired or not.
func (s *Store) BooksHeldBy(_ context.Context, userID core.UserID) ([]core.BookID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]core.BookID, 0)
	for id, row := range s.books {
		if row.hold != nil && row.hold.UserID == userID {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids, nil
}

// record assembles a detached copy. Callers hold s.mu.
func (s *Store) record(row *bookRow) core.BookRecord {
	rec := core.BookRecord{
		Book:    row.book,
		Hold:    copyHold(row.hold),
		Version: row.version,
	}

	for _, loan := range s.loans {
		if loan.BookID == row.book.ID && loan.IsActive() {
			active := loan
			rec.ActiveLoan = &active
			break
		}
	}

	for _, res := range s.reservations {
		if res.BookID == row.book.ID && res.IsActive {
			rec.Queue = append(rec.Queue, res)
		}
	}

	slices.SortFunc(rec.Queue, func(a, b core.Reservation) int { return cmp.Compare(a.Position, b.Position) })

	return rec
}

func copyHold(hold *core.Hold) *core.Hold {
	if hold == nil {
		return nil
	}

	c := *hold

	return &c
}
