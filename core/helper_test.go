package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-sanghavi/library-management/core"
)

const (
	bookID1984 = core.BookID("5")
	userU1     = core.UserID("U1")
	userU2     = core.UserID("U2")
	userU3     = core.UserID("U3")
	days       = 24 * time.Hour
)

func givenAvailableBook(t *testing.T) *core.BookRecord {
	t.Helper()

	return &core.BookRecord{
		Book: core.Book{
			ID:           bookID1984,
			Title:        "1984",
			Author:       "George Orwell",
			Availability: core.Available,
		},
	}
}

func givenBorrowedBook(t *testing.T, loans core.LoanManager, userID core.UserID, at time.Time) (*core.BookRecord, core.Loan) {
	t.Helper()

	rec := givenAvailableBook(t)
	loan, err := loans.Borrow(rec, "loan-"+core.LoanID(userID), userID, at)
	require.NoError(t, err)

	return rec, loan
}

func givenReservation(
	t *testing.T,
	queue core.ReservationQueue,
	rec *core.BookRecord,
	userID core.UserID,
	at time.Time,
) core.Reservation {

	t.Helper()

	res, err := queue.Reserve(rec, "res-"+core.ReservationID(userID), userID, at)
	require.NoError(t, err)

	return res
}

func assertQueueIsContiguous(t *testing.T, rec *core.BookRecord) {
	t.Helper()

	for i, res := range rec.Queue {
		assert.True(t, res.IsActive, "reservation %s in queue must be active", res.ID)
		assert.Equal(t, i+1, res.Position, "reservation %s has wrong position", res.ID)

		if i > 0 {
			assert.False(t, res.ReservationDate.Before(rec.Queue[i-1].ReservationDate), "queue must be FIFO")
		}
	}
}

func assertQueueUsers(t *testing.T, rec *core.BookRecord, expected ...core.UserID) {
	t.Helper()

	actual := make([]core.UserID, 0, len(rec.Queue))
	for _, res := range rec.Queue {
		actual = append(actual, res.UserID)
	}

	if len(expected) == 0 {
		expected = []core.UserID{}
	}

	assert.Equal(t, expected, actual)
}
