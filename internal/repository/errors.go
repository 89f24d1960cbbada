// Package repository holds the PostgreSQL access for sources, credentials,
// dataset templates, extractions and operation logs.
package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// invalidTextRepresentation is raised when an id cannot be cast to UUID.
const invalidTextRepresentation pq.ErrorCode = "22P02"

var (
	// ErrNotFound is wrapped by every lookup that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrStaleStatus is returned when a conditional status update matched no
	// row because another writer already moved the extraction.
	ErrStaleStatus = errors.New("extraction status changed concurrently")
)

// isNoRow reports whether a lookup error means no row can match: an empty
// result, or a malformed id that no UUID column can hold.
func isNoRow(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}
