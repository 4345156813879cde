package types

import "errors"

// Standard errors returned by the access layers. Driver-level failures
// (constraint violations, connectivity loss) are wrapped, not replaced;
// use the classification helpers in internal/db to branch on them.
var (
	// ErrNotFound is returned by point lookups when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownColumn is returned when a record, criteria map, or
	// update payload names a column outside the table's allowlist.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidOrderBy is returned when an order-by clause does not
	// reduce to an allowlisted column plus an optional direction.
	ErrInvalidOrderBy = errors.New("invalid order by clause")

	// ErrEmptyRecord is returned when an insert payload carries no columns.
	ErrEmptyRecord = errors.New("empty record")

	// ErrPoolClosed is returned when an operation is attempted against
	// a pool that has been closed.
	ErrPoolClosed = errors.New("connection pool is closed")
)
