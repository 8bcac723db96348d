package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrSchemaNotInitialized reports a database without the required tables.
	ErrSchemaNotInitialized = errors.New("schema not initialized")

	// ErrDatabaseUnavailable reports a database file that cannot be opened.
	ErrDatabaseUnavailable = errors.New("database unavailable")

	// ErrUniqueViolation reports an insert or update that collided with an
	// existing (year, number) pair or file path. During allocation it signals a
	// numbering race.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrNotFound reports a lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrIdentityMismatch reports an overwrite whose context declares a
	// different document number than the one on record.
	ErrIdentityMismatch = errors.New("context declares a different document number")
)

// isUniqueViolation matches UNIQUE and PRIMARY KEY constraint failures.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
