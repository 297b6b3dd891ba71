// Package lending is the Lending Engine: the single entry point through which callers borrow,
// renew, return and reserve books.
//
// Every mutating operation runs inside the critical section of exactly one book:
//
//	lock(book) -> load record -> expire holds -> decide (core) -> save with expected version -> unlock
//
// Operations on different books never wait for each other. The lock serializes callers of one
// process (or of all processes, with a distributed locker); the store's optimistic version check
// protects the record from writers that bypass the lock. A ConcurrencyConflict is retried once with
// a fresh load before it is surfaced.
//
// Time is never read from the system clock for business decisions: every operation takes now.
package lending
