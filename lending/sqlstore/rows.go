package sqlstore

import (
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"

	"github.com/d-sanghavi/library-management/core"
)

var (
	bookColumns = []any{
		colID, colTitle, colAuthor, colCategory, colISBN, colDescription, colCoverURL, colShelf,
		colPublishedYear, colPages, colIsFree, colPDFURL, colAvailability,
		colHoldReservationID, colHoldUserID, colHoldGrantedAt, colHoldExpiresAt, colVersion,
	}

	loanColumns = []any{
		colID, colBookID, colUserID, colBorrowedAt, colDueAt, colReturnedAt, colRenewalCount, colFine, colFineSettledAt,
	}

	reservationColumns = []any{
		colID, colBookID, colUserID, colReservedAt, colQueuePosition, colIsActive, colEndedAt, colEndReason,
	}
)

type bookRow struct {
	id, title, author, category, isbn, description, coverURL, shelf string
	publishedYear, pages, isFree                                    int64
	pdfURL, availability                                            string
	holdReservationID, holdUserID                                   sql.NullString
	holdGrantedAt, holdExpiresAt                                    sql.NullInt64
	version                                                         int64
}

func (r *bookRow) dest() []any {
	return []any{
		&r.id, &r.title, &r.author, &r.category, &r.isbn, &r.description, &r.coverURL, &r.shelf,
		&r.publishedYear, &r.pages, &r.isFree, &r.pdfURL, &r.availability,
		&r.holdReservationID, &r.holdUserID, &r.holdGrantedAt, &r.holdExpiresAt, &r.version,
	}
}

func (r *bookRow) toRecord() core.BookRecord {
	rec := core.BookRecord{
		Book: core.Book{
			ID:            core.BookID(r.id),
			Title:         r.title,
			Author:        r.author,
			Category:      r.category,
			ISBN:          r.isbn,
			Description:   r.description,
			CoverURL:      r.coverURL,
			Shelf:         r.shelf,
			PublishedYear: int(r.publishedYear),
			Pages:         int(r.pages),
			IsFree:        r.isFree != 0,
			PDFURL:        r.pdfURL,
			Availability:  core.Availability(r.availability),
		},
		Version: r.version,
	}

	if r.holdUserID.Valid {
		rec.Hold = &core.Hold{
			ReservationID: core.ReservationID(r.holdReservationID.String),
			UserID:        core.UserID(r.holdUserID.String),
			GrantedAt:     fromMicros(r.holdGrantedAt.Int64),
			ExpiresAt:     fromMicros(r.holdExpiresAt.Int64),
		}
	}

	return rec
}

type loanRow struct {
	id, bookID, userID string
	borrowedAt, dueAt  int64
	returnedAt         sql.NullInt64
	renewalCount       int64
	fine               string
	fineSettledAt      sql.NullInt64
}

func (r *loanRow) dest() []any {
	return []any{&r.id, &r.bookID, &r.userID, &r.borrowedAt, &r.dueAt, &r.returnedAt, &r.renewalCount, &r.fine, &r.fineSettledAt}
}

func (r *loanRow) toLoan() (core.Loan, error) {
	fine, err := decimal.NewFromString(r.fine)
	if err != nil {
		return core.Loan{}, err
	}

	return core.Loan{
		ID:            core.LoanID(r.id),
		BookID:        core.BookID(r.bookID),
		UserID:        core.UserID(r.userID),
		BorrowDate:    fromMicros(r.borrowedAt),
		DueDate:       fromMicros(r.dueAt),
		ReturnDate:    fromNullMicros(r.returnedAt),
		RenewalCount:  int(r.renewalCount),
		Fine:          fine,
		FineSettledAt: fromNullMicros(r.fineSettledAt),
	}, nil
}

type reservationRow struct {
	id, bookID, userID string
	reservedAt         int64
	position           int64
	isActive           int64
	endedAt            sql.NullInt64
	endReason          string
}

func (r *reservationRow) dest() []any {
	return []any{&r.id, &r.bookID, &r.userID, &r.reservedAt, &r.position, &r.isActive, &r.endedAt, &r.endReason}
}

func (r *reservationRow) toReservation() core.Reservation {
	return core.Reservation{
		ID:              core.ReservationID(r.id),
		BookID:          core.BookID(r.bookID),
		UserID:          core.UserID(r.userID),
		ReservationDate: fromMicros(r.reservedAt),
		Position:        int(r.position),
		IsActive:        r.isActive != 0,
		EndedAt:         fromNullMicros(r.endedAt),
		EndReason:       core.EndReason(r.endReason),
	}
}

func bookValues(book core.Book) goqu.Record {
	return goqu.Record{
		colTitle:         book.Title,
		colAuthor:        book.Author,
		colCategory:      book.Category,
		colISBN:          book.ISBN,
		colDescription:   book.Description,
		colCoverURL:      book.CoverURL,
		colShelf:         book.Shelf,
		colPublishedYear: int64(book.PublishedYear),
		colPages:         int64(book.Pages),
		colIsFree:        boolToInt(book.IsFree),
		colPDFURL:        book.PDFURL,
		colAvailability:  string(book.Availability),
	}
}

func holdValues(hold *core.Hold) goqu.Record {
	if hold == nil {
		return goqu.Record{
			colHoldReservationID: nil,
			colHoldUserID:        nil,
			colHoldGrantedAt:     nil,
			colHoldExpiresAt:     nil,
		}
	}

	return goqu.Record{
		colHoldReservationID: string(hold.ReservationID),
		colHoldUserID:        string(hold.UserID),
		colHoldGrantedAt:     toMicros(hold.GrantedAt),
		colHoldExpiresAt:     toMicros(hold.ExpiresAt),
	}
}

func loanValues(loan core.Loan) goqu.Record {
	return goqu.Record{
		colBookID:        string(loan.BookID),
		colUserID:        string(loan.UserID),
		colBorrowedAt:    toMicros(loan.BorrowDate),
		colDueAt:         toMicros(loan.DueDate),
		colReturnedAt:    toNullMicros(loan.ReturnDate),
		colRenewalCount:  int64(loan.RenewalCount),
		colFine:          loan.Fine.String(),
		colFineSettledAt: toNullMicros(loan.FineSettledAt),
	}
}

func reservationValues(res core.Reservation) goqu.Record {
	return goqu.Record{
		colBookID:        string(res.BookID),
		colUserID:        string(res.UserID),
		colReservedAt:    toMicros(res.ReservationDate),
		colQueuePosition: int64(res.Position),
		colIsActive:      boolToInt(res.IsActive),
		colEndedAt:       toNullMicros(res.EndedAt),
		colEndReason:     string(res.EndReason),
	}
}

func merge(records ...goqu.Record) goqu.Record {
	merged := goqu.Record{}
	for _, record := range records {
		for k, v := range record {
			merged[k] = v
		}
	}

	return merged
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func toNullMicros(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UnixMicro()
}

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}

	t := fromMicros(v.Int64)

	return &t
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
