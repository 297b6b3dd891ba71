package core

import "time"

// ReservationID identifies a reservation.
type ReservationID string

// EndReason tells why a reservation left the queue.
type EndReason string

const (
	EndReasonCancelled EndReason = "cancelled"
	EndReasonPromoted  EndReason = "promoted"
)

// Reservation is a place in a book's waiting queue. Position is 1-based and only meaningful
// while the reservation is active.
type Reservation struct {
	ID              ReservationID `json:"id"`
	BookID          BookID        `json:"book_id"`
	UserID          UserID        `json:"user_id"`
	ReservationDate time.Time     `json:"reservation_date"`
	Position        int           `json:"position"`
	IsActive        bool          `json:"is_active"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	EndReason       EndReason     `json:"end_reason,omitempty"`
}

// Hold is the exclusive right of a promoted reserver to borrow a book until ExpiresAt.
type Hold struct {
	ReservationID ReservationID `json:"reservation_id"`
	UserID        UserID        `json:"user_id"`
	GrantedAt     time.Time     `json:"granted_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

// IsExpired reports whether the hold window has elapsed at now.
func (h Hold) IsExpired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// QueueView is a read-only snapshot of a book's hold and its active reservations in position order.
type QueueView struct {
	BookID       BookID        `json:"book_id"`
	Hold         *Hold         `json:"hold,omitempty"`
	Reservations []Reservation `json:"reservations"`
}
