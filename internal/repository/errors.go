// Package repository defines error types that are reused across the user
// data access code.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver errors.  ErrEmailExists and ErrGoogleIDTaken report the
// two unique indexes of the users table, while ErrInvalidSort and
// ErrInvalidFilter reject list parameters before any SQL is built.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrUserNotFound is returned when no user matches the given id.  Handlers
// translate it into an HTTP 404 response.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when a create or update would give two users
// the same email.  Handlers translate it into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrGoogleIDTaken is returned when a Google subject is already linked to
// another user.
var ErrGoogleIDTaken = errors.New("google id already linked to another user")

// ErrInvalidSort is returned when sortBy is not an allowed column or
// sortOrder is neither ASC nor DESC.
var ErrInvalidSort = errors.New("invalid sort")

// ErrInvalidFilter is returned when a role or status filter is not one of
// the enumerated values.
var ErrInvalidFilter = errors.New("invalid filter")

// ErrInvalidUser is returned when required fields are missing or an enum
// field holds an unknown value.
var ErrInvalidUser = errors.New("invalid user")

// isUniqueViolation reports whether err is a duplicate-key failure from
// either supported driver.
func isUniqueViolation(err error) bool {
	_, ok := uniqueViolation(err)
	return ok
}

// uniqueViolation reports whether err is a duplicate-key failure and, when
// it can tell, the column whose index rejected the row ("email" or
// "google_id").
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number != 1062 {
			return "", false
		}
		return violatedKey(myErr.Message), true
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return violatedKey(liteErr.Error()), true
		}
	}
	return "", false
}

// violatedKey reads the index name out of a driver message:
//
//	MySQL:  Duplicate entry 'x' for key 'users.uq_users_google_id'
//	SQLite: UNIQUE constraint failed: users.google_id
//
// Only the text after the marker is inspected, so the duplicated value
// itself cannot match.
func violatedKey(msg string) string {
	for _, marker := range []string{"for key ", "constraint failed: "} {
		if i := strings.LastIndex(msg, marker); i >= 0 {
			msg = msg[i+len(marker):]
			break
		}
	}
	switch {
	case strings.Contains(msg, "google_id"):
		return "google_id"
	case strings.Contains(msg, "email"):
		return "email"
	}
	return ""
}

// conflictError maps a unique violation onto the sentinel for its index and
// returns nil for any other error.  An unrecognised index is reported as an
// email conflict, the only unique column a client writes directly.
func conflictError(err error) error {
	key, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	if key == "google_id" {
		return ErrGoogleIDTaken
	}
	return ErrEmailExists
}
