// Package ledger is the single source of truth for which reservation,
// if any, holds a given (screening, seat) pair.  The sentinel values
// below let the allocator and handlers distinguish expected contention
// from caller mistakes.  Note that ErrSeatTaken is a normal outcome of
// racing claims, not a fault, and is never logged as an error.
package ledger

import "errors"

// ErrSeatTaken is returned by TryClaim when another reservation already
// holds the seat.  Exactly one of any set of racing claims avoids it.
var ErrSeatTaken = errors.New("seat taken")

// ErrNotHolder is returned by TryRelease when the seat is currently
// held under a different reservation id, meaning the caller's view of
// the seat is stale.
var ErrNotHolder = errors.New("not holder")

// ErrNoActiveReservation is returned by TryRelease when no record
// exists for the seat at all.  Callers treating release as idempotent
// map this to a no-op success.
var ErrNoActiveReservation = errors.New("no active reservation")

// ErrReservationNotFound is returned by Lookup when the id is unknown
// or the reservation has been retired.
var ErrReservationNotFound = errors.New("reservation not found")
