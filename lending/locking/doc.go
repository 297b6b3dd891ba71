// Package locking provides the per-book critical sections of the lending engine.
//
// Local serializes callers inside one process. Redis serializes callers across processes with a
// redsync mutex, for deployments that run several engine instances against one database.
// Both implement the same WithLock contract: fn runs while no other caller holds the same key,
// and the lock is released when fn returns, even if it panics.
package locking
