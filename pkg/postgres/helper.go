package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsForeignKeyViolation reports whether the given error is a PostgreSQL
// foreign key violation (SQLSTATE 23503). It walks wrapped errors via errors.As.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23503"
	}

	return false
}

// IsUniqueViolation reports whether the given error is a PostgreSQL
// unique constraint violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}

	return false
}

// IsLockNotAvailable reports whether the given error is a PostgreSQL
// lock_not_available error (SQLSTATE 55P03), e.g. a lock wait timeout.
func IsLockNotAvailable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "55P03"
	}

	return false
}
