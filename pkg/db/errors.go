package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolationCode = "23505"

// IsUniqueViolation reports whether the error is a Postgres unique violation.
// When constraintName is provided, the match is narrowed to that constraint.
// Falls back to message sniffing for drivers that do not expose a PgError
// (the sqlite driver used in tests among them).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolationCode {
			return false
		}
		if constraintName != "" {
			return pgErr.ConstraintName == constraintName
		}
		return true
	}

	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
