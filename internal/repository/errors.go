// Package repository defines the MySQL and Redis backed stores.  Sentinel
// errors declared here let handlers and services distinguish failure
// scenarios with errors.Is.  For example, ErrVersionConflict signals that
// an event record changed between load and write and the caller should
// reload and re-apply its change, while ErrForbidden indicates that the
// caller does not own the event it tried to modify.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEventNotFound is returned when no event row matches the id.
var ErrEventNotFound = errors.New("event not found")

// ErrVersionConflict is returned by EventRepo.Replace when the stored
// version no longer matches the version the record was loaded with.
var ErrVersionConflict = errors.New("event was modified concurrently")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers the stores react to.
const (
	errDupEntry     = 1062
	errNoReferenced = 1452
)

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
