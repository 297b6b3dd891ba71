package core

import (
	"slices"
	"time"
)

// ReservationQueue manages the FIFO waiting queue of a book and the promotion hold of its head.
type ReservationQueue struct {
	holdWindow time.Duration
}

// NewReservationQueue creates a ReservationQueue granting holds of policy.HoldWindow.
func NewReservationQueue(policy Policy) ReservationQueue {
	return ReservationQueue{holdWindow: policy.HoldWindow}
}

// Reserve appends a reservation for userID to the end of the book's queue.
//
// Reservations are only accepted while the book can not be borrowed: a book that is Available
// fails with ErrBookAvailable. The current borrower gets ErrAlreadyBorrowing, a user who already
// waits for or holds the book gets ErrAlreadyReserved.
func (q ReservationQueue) Reserve(
	rec *BookRecord,
	id ReservationID,
	userID UserID,
	now time.Time,
) (Reservation, error) {

	if userID == "" {
		return Reservation{}, ErrEmptyUserID
	}

	q.ExpireHold(rec, now)

	switch {
	case rec.queuedBy(userID) || rec.heldBy(userID, now):
		return Reservation{}, ErrAlreadyReserved

	case rec.ActiveLoan != nil && rec.ActiveLoan.UserID == userID:
		return Reservation{}, ErrAlreadyBorrowing

	case rec.deriveAvailability() == Available:
		return Reservation{}, ErrBookAvailable
	}

	reservation := Reservation{
		ID:              id,
		BookID:          rec.Book.ID,
		UserID:          userID,
		ReservationDate: now,
		Position:        len(rec.Queue) + 1,
		IsActive:        true,
	}

	rec.Queue = append(rec.Queue, reservation)
	rec.touchReservation(reservation)
	rec.setAvailability()

	return reservation, nil
}

// Cancel deactivates an active reservation and closes the gap it leaves in the queue.
// Cancelling a reservation that is no longer in the queue fails with ErrReservationAlreadyInactive
// and changes nothing.
func (q ReservationQueue) Cancel(rec *BookRecord, id ReservationID, now time.Time) (Reservation, error) {
	q.ExpireHold(rec, now)

	idx := slices.IndexFunc(rec.Queue, func(res Reservation) bool { return res.ID == id })
	if idx < 0 {
		return Reservation{}, ErrReservationAlreadyInactive
	}

	cancelled := rec.Queue[idx]
	cancelled.IsActive = false
	cancelled.Position = 0
	cancelled.EndedAt = &now
	cancelled.EndReason = EndReasonCancelled

	rec.Queue = slices.Delete(rec.Queue, idx, idx+1)
	rec.touchReservation(cancelled)
	rec.renumberQueue()
	rec.setAvailability()

	return cancelled, nil
}

// PromoteHead hands the book to the head of the queue once nobody borrows it: the head
// reservation is deactivated and its user gets a hold until now plus the hold window.
// It reports the hold in effect afterwards, if any.
func (q ReservationQueue) PromoteHead(rec *BookRecord, now time.Time) (Hold, bool) {
	q.ExpireHold(rec, now)

	if rec.ActiveLoan == nil && rec.Hold == nil && len(rec.Queue) > 0 {
		q.promote(rec, now)
	}

	rec.setAvailability()

	if rec.Hold == nil {
		return Hold{}, false
	}

	return *rec.Hold, true
}

// ExpireHold drops a hold whose window has elapsed and promotes the next head.
//
// The next hold starts when the previous one expired, not at now, so the outcome does not depend
// on when the book is next looked at. Several holds may expire in one sweep.
// It reports whether the record changed.
func (q ReservationQueue) ExpireHold(rec *BookRecord, now time.Time) bool {
	changed := false

	for rec.Hold != nil && rec.Hold.IsExpired(now) {
		expiredAt := rec.Hold.ExpiresAt
		rec.Hold = nil
		changed = true

		if rec.ActiveLoan == nil && len(rec.Queue) > 0 {
			q.promote(rec, expiredAt)
		}
	}

	if changed {
		rec.setAvailability()
	}

	return changed
}

func (q ReservationQueue) promote(rec *BookRecord, at time.Time) {
	head := rec.Queue[0]
	head.IsActive = false
	head.Position = 0
	head.EndedAt = &at
	head.EndReason = EndReasonPromoted

	rec.Queue = slices.Delete(rec.Queue, 0, 1)
	rec.touchReservation(head)
	rec.renumberQueue()

	rec.Hold = &Hold{
		ReservationID: head.ID,
		UserID:        head.UserID,
		GrantedAt:     at,
		ExpiresAt:     at.Add(q.holdWindow),
	}
}
