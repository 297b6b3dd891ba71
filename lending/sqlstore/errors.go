package sqlstore

import "errors"

var (
	// ErrNilDatabaseConnection is returned when a constructor receives a nil connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrUnsupportedDialect is returned by WithDialect for anything but postgres and sqlite3.
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")

	// ErrBuildingQueryFailed is returned when goqu can not render a statement.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingFailed is returned when a select fails.
	ErrQueryingFailed = errors.New("querying failed")

	// ErrScanningDBRowFailed is returned when a row can not be scanned or decoded.
	ErrScanningDBRowFailed = errors.New("scanning db row failed")

	// ErrWritingFailed is returned when an insert or update fails.
	ErrWritingFailed = errors.New("writing failed")

	// ErrGettingRowsAffectedFailed is returned when the driver can not report affected rows.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")

	// ErrTransactionFailed is returned when a transaction can not be started or committed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrMigrationFailed is returned when the schema can not be created.
	ErrMigrationFailed = errors.New("migration failed")
)
