package core

import (
	"slices"
	"time"
)

// BookRecord is the complete lending state of one book, as loaded from a store.
//
// Queue holds the active reservations in position order. Version is the store version the
// record was loaded at; stores reject saving a record whose version is outdated.
type BookRecord struct {
	Book       Book
	ActiveLoan *Loan
	Queue      []Reservation
	Hold       *Hold
	Version    int64

	touchedLoans        []Loan
	touchedReservations []Reservation
}

// Changes lists the loans and reservations a record mutation created or modified.
type Changes struct {
	Loans        []Loan
	Reservations []Reservation
}

// IsEmpty reports whether nothing was touched.
func (c Changes) IsEmpty() bool {
	return len(c.Loans) == 0 && len(c.Reservations) == 0
}

// Changes returns what was touched since the record was loaded, latest state per id.
func (r *BookRecord) Changes() Changes {
	return Changes{
		Loans:        slices.Clone(r.touchedLoans),
		Reservations: slices.Clone(r.touchedReservations),
	}
}

// QueueView returns a copy of the hold and the queue.
func (r *BookRecord) QueueView() QueueView {
	view := QueueView{
		BookID:       r.Book.ID,
		Reservations: slices.Clone(r.Queue),
	}

	if r.Hold != nil {
		hold := *r.Hold
		view.Hold = &hold
	}

	if view.Reservations == nil {
		view.Reservations = []Reservation{}
	}

	return view
}

// deriveAvailability is the only way availability changes.
func (r *BookRecord) deriveAvailability() Availability {
	switch {
	case r.ActiveLoan != nil:
		return Borrowed
	case r.Hold != nil || len(r.Queue) > 0:
		return Reserved
	default:
		return Available
	}
}

func (r *BookRecord) setAvailability() {
	r.Book.Availability = r.deriveAvailability()
}

func (r *BookRecord) touchLoan(loan Loan) {
	for i := range r.touchedLoans {
		if r.touchedLoans[i].ID == loan.ID {
			r.touchedLoans[i] = loan
			return
		}
	}

	r.touchedLoans = append(r.touchedLoans, loan)
}

func (r *BookRecord) touchReservation(reservation Reservation) {
	for i := range r.touchedReservations {
		if r.touchedReservations[i].ID == reservation.ID {
			r.touchedReservations[i] = reservation
			return
		}
	}

	r.touchedReservations = append(r.touchedReservations, reservation)
}

func (r *BookRecord) queuedBy(userID UserID) bool {
	return slices.ContainsFunc(r.Queue, func(res Reservation) bool { return res.UserID == userID })
}

func (r *BookRecord) heldBy(userID UserID, now time.Time) bool {
	return r.Hold != nil && r.Hold.UserID == userID && !r.Hold.IsExpired(now)
}

// renumberQueue makes positions 1..N again and records every reservation whose position moved.
func (r *BookRecord) renumberQueue() {
	for i := range r.Queue {
		if r.Queue[i].Position != i+1 {
			r.Queue[i].Position = i + 1
			r.touchReservation(r.Queue[i])
		}
	}
}
