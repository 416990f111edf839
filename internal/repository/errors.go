package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Storage errors surfaced to services. Not-found is always sql.ErrNoRows.
var (
	ErrDuplicate  = errors.New("duplicate value")
	ErrReferenced = errors.New("row is referenced")
	ErrOverlap    = errors.New("schedule slot overlaps")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqExclusionViolation  = "23P01"
	// Raised when an id parameter is not a valid UUID literal.
	pqInvalidTextRepresentation = "22P02"
)

// translate maps PostgreSQL constraint failures onto the storage errors,
// keeping the driver error in the chain. A malformed id cannot match any row
// and is reported as sql.ErrNoRows.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return errors.Join(ErrDuplicate, err)
	case pqForeignKeyViolation:
		return errors.Join(ErrReferenced, err)
	case pqExclusionViolation:
		return errors.Join(ErrOverlap, err)
	case pqInvalidTextRepresentation:
		return errors.Join(sql.ErrNoRows, err)
	}
	return err
}

func notFound(err error) bool {
	return errors.Is(translate(err), sql.ErrNoRows)
}
