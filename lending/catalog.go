package lending

import (
	"context"
	"time"

	"github.com/d-sanghavi/library-management/core"
)

// AddBook puts a new book into the catalog. New books are always Available.
func (e *Engine) AddBook(ctx context.Context, book core.Book) (core.Book, error) {
	ctx, obs := e.begin(ctx, opAddBook, logAttrBookID, book.ID)

	book.Availability = core.Available

	err := book.Validate()
	if err == nil {
		err = e.store.InsertBook(ctx, book)
	}

	obs.end(ctx, err)
	if err != nil {
		return core.Book{}, err
	}

	return book, nil
}

// GetBook returns a catalog entry. Its availability accounts for holds that expired by now,
// even if no operation has touched the book since.
func (e *Engine) GetBook(ctx context.Context, bookID core.BookID, now time.Time) (core.Book, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opGetBook, logAttrBookID, bookID)

	rec, err := e.view(ctx, bookID, now)

	obs.end(ctx, err)
	if err != nil {
		return core.Book{}, err
	}

	return rec.Book, nil
}

// ListBooks returns the whole catalog ordered by id, with availability as of now.
func (e *Engine) ListBooks(ctx context.Context, now time.Time) ([]core.Book, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opListBooks)

	records, err := e.store.ListBooks(ctx)

	obs.end(ctx, err)
	if err != nil {
		return nil, err
	}

	books := make([]core.Book, 0, len(records))
	for i := range records {
		e.queue.ExpireHold(&records[i], now)
		books = append(books, records[i].Book)
	}

	return books, nil
}

// Queue returns the hold and the waiting queue of a book as of now.
func (e *Engine) Queue(ctx context.Context, bookID core.BookID, now time.Time) (core.QueueView, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opQueue, logAttrBookID, bookID)

	rec, err := e.view(ctx, bookID, now)

	obs.end(ctx, err)
	if err != nil {
		return core.QueueView{}, err
	}

	return rec.QueueView(), nil
}

// view loads a record and applies lazily expired holds without saving them.
func (e *Engine) view(ctx context.Context, bookID core.BookID, now time.Time) (core.BookRecord, error) {
	if bookID == "" {
		return core.BookRecord{}, core.ErrEmptyBookID
	}

	rec, err := e.store.LoadBook(ctx, bookID)
	if err != nil {
		return core.BookRecord{}, err
	}

	if e.queue.ExpireHold(&rec, now) {
		e.logDebug(ctx, logMsgHoldExpired, logAttrBookID, bookID)
	}

	return rec, nil
}
