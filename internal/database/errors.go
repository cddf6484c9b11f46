package database

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an email is already registered
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrProtected is returned when a delete is blocked by rows that reference the target
	ErrProtected = errors.New("referenced by protected rows")
)

// PostgreSQL error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqCode(err) == codeForeignKeyViolation
}
