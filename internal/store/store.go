// Package store holds the Postgres repositories for jobs, applications,
// users and notifications. Every status mutation is a conditional update
// keyed on the expected prior status, so a raced or retried request loses
// the compare-and-set instead of double-applying.
package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx, so repository methods
// can run standalone or inside the selection transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// uniqueViolation is the Postgres error code for a unique index violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint error.
func IsUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}
