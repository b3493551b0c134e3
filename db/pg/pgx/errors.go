package pgx

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// ErrorCode from https://www.postgresql.org/docs/current/errcodes-appendix.html
type ErrorCode string

const (
	UniqueViolation ErrorCode = "23505"
	UndefinedTable  ErrorCode = "42P01"
)

func (e ErrorCode) String() string {
	return string(e)
}

// ErrorIs checks if error is *pgconn.PgError and compares codes
func ErrorIs(err error, code ErrorCode) (*pgconn.PgError, bool) {
	pgErr, ok := FromError(err)
	if !ok || pgErr.Code != code.String() {
		return nil, false
	}
	return pgErr, true
}

// FromError converts error to *pgconn.PgError if it's possible
func FromError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if err != nil && errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsNoRows reports whether a QueryRow scan found nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
