package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// ErrNoData indicates a query matched no rows in any shard.
var ErrNoData = errors.New("no data")

// IsDuplicateKey reports whether err is a unique constraint violation
// (SQLSTATE 23505). Insert-ignore paths treat this as success.
func IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// IsUndefinedTable reports whether err means the queried relation does not
// exist (SQLSTATE 42P01). Shard readers skip such tables.
func IsUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 42P01") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

// IsDuplicateTable reports whether err is a CREATE TABLE race on an existing
// relation (SQLSTATE 42P07). Concurrent shard creation treats it as success.
func IsDuplicateTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P07"
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 42P07") ||
		strings.Contains(msg, "already exists")
}
