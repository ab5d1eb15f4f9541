package pkg

import (
	"errors"
	"slices"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeForeignKeyViolation = "23503"
	pgCodeUniqueViolation     = "23505"
)

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil, false
	}
	return pgErr, true
}

// IsUniqueViolationError reports whether err is a unique violation.
// When constraint names are given, the violated constraint must be one of them.
func IsUniqueViolationError(err error, constraints ...string) bool {
	pgErr, ok := asPgError(err)
	if !ok || pgErr.Code != pgCodeUniqueViolation {
		return false
	}
	return len(constraints) == 0 || slices.Contains(constraints, pgErr.ConstraintName)
}

func IsForeignKeyViolationError(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == pgCodeForeignKeyViolation
}
