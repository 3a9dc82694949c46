package storage

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits the url uniqueness constraint.
	ErrDuplicate = errors.New("duplicate listing")
)

const pgErrCodeUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgErrCodeUniqueViolation
	}
	return false
}
