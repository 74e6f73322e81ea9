package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateSchema is returned when a tenant with the same schema name
	// already exists in the directory.
	ErrDuplicateSchema = errors.New("schema name already registered")

	// ErrDuplicateDomain is returned when a hostname is already mapped to a
	// tenant (including the same one).
	ErrDuplicateDomain = errors.New("hostname already registered")

	// ErrTenantNotFound is returned by lookups and mutations that target a
	// tenant that does not exist in the directory.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrDomainNotFound is returned when removing a hostname that is not
	// registered.
	ErrDomainNotFound = errors.New("domain not found")
)

// uniqueViolation is SQLSTATE 23505. Duplicate schema names and hostnames
// are detected through the database constraint, never check-then-act alone,
// so concurrent admin calls cannot race past the check.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
