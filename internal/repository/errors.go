// Package repository holds the MySQL data access layer.  Sentinel errors
// defined here let handlers distinguish failure scenarios without looking
// at driver errors: ErrNotFound maps to 404, ErrConflict and the
// duplicate-field errors map to 409.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of the
// current state of the row, e.g. activating an already active account.
var ErrConflict = errors.New("conflict")

// ErrUsernameExists and ErrEmailExists report a unique-key violation on the
// users table.
var (
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// mysqlDuplicateEntry is the server error number for a unique-key clash.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL duplicate entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// duplicateKeyName extracts the index name from a duplicate entry message
// ("Duplicate entry 'x' for key 'users.uq_users_email'").
func duplicateKeyName(err error) string {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return ""
	}
	msg := me.Message
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key
}
