package sqlstore

import (
	"context"
	"errors"
	"time"
)

// schemaStatements creates the tables and indexes. Timestamps are unix microseconds, fines are
// decimal strings and flags are 0/1 integers, so the same DDL runs on postgres and sqlite.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		isbn TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		cover_url TEXT NOT NULL DEFAULT '',
		shelf TEXT NOT NULL DEFAULT '',
		published_year BIGINT NOT NULL DEFAULT 0,
		pages BIGINT NOT NULL DEFAULT 0,
		is_free BIGINT NOT NULL DEFAULT 0,
		pdf_url TEXT NOT NULL DEFAULT '',
		availability TEXT NOT NULL,
		hold_reservation_id TEXT NULL,
		hold_user_id TEXT NULL,
		hold_granted_at BIGINT NULL,
		hold_expires_at BIGINT NULL,
		version BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL REFERENCES books (id),
		user_id TEXT NOT NULL,
		borrowed_at BIGINT NOT NULL,
		due_at BIGINT NOT NULL,
		returned_at BIGINT NULL,
		renewal_count BIGINT NOT NULL DEFAULT 0,
		fine TEXT NOT NULL DEFAULT '0',
		fine_settled_at BIGINT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS loans_one_active_per_book ON loans (book_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS loans_user_id ON loans (user_id)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL REFERENCES books (id),
		user_id TEXT NOT NULL,
		reserved_at BIGINT NOT NULL,
		queue_position BIGINT NOT NULL DEFAULT 0,
		is_active BIGINT NOT NULL DEFAULT 1,
		ended_at BIGINT NULL,
		end_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_book_active ON reservations (book_id, is_active, queue_position)`,
	`CREATE INDEX IF NOT EXISTS reservations_user_id ON reservations (user_id)`,
	`CREATE INDEX IF NOT EXISTS books_hold_user_id ON books (hold_user_id)`,
}

// Migrate creates the schema if it does not exist yet. It is idempotent.
func (s Store) Migrate(ctx context.Context) error {
	start := time.Now()

	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			if s.logger != nil {
				s.logger.Error(logMsgDBExecFailed, logAttrError, err.Error(), logAttrQuery, stmt)
			}

			return errors.Join(ErrMigrationFailed, err)
		}
	}

	s.logOperation(
		logMsgSchemaMigrated,
		logAttrStatementCount, len(schemaStatements),
		logAttrDurationMS, s.durationToMilliseconds(time.Since(start)))

	return nil
}
