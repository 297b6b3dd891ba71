// Package core contains the pure lending rules of the library: the data model for books,
// loans, reservations and holds, the fine calculator, the reservation queue manager and the
// loan manager.
//
// Nothing in this package performs I/O or reads the system clock. Every operation works on a
// BookRecord, which is the complete lending state of one book (its active loan, its waiting
// queue, its promotion hold and a version number), and records which loans and reservations it
// touched so that a store can persist the change atomically.
//
// A book's availability is never set from the outside. It is recomputed after every mutation:
//
//	active loan                -> Borrowed
//	hold or non-empty queue    -> Reserved
//	otherwise                  -> Available
package core
