package storage

import (
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a pot, participant or expense does not exist
	// (or does not belong to the requested pot).
	ErrNotFound = errors.New("not found")

	// ErrInviteCodeTaken is returned when a generated invite code collides.
	ErrInviteCodeTaken = errors.New("invite code already in use")
)

// isUniqueViolation reports whether err is a uniqueness constraint failure
// from either supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	return false
}
