// Package allocator exposes the operation surface callers use: Claim,
// Move, Release, Get and ListAvailable.  Sentinel values below cover
// the outcomes the ledger cannot know about on its own.  Handlers
// translate them into HTTP responses; none of them is ever a panic.
package allocator

import "errors"

// ErrScreeningNotFound is returned when the catalog has no screening
// with the given id.
var ErrScreeningNotFound = errors.New("screening not found")

// ErrSeatOutOfRange is returned when the requested seat number falls
// outside [1, capacity] for the screening's room.
var ErrSeatOutOfRange = errors.New("seat number out of range")

// ErrCompensationFailed is reported (never returned as a failure of
// the move itself) when the old seat of a successful move could not be
// released within the bounded retry budget.  The seat stays occupied
// until an operator or a later release resolves it, so the condition
// must stay observable.
var ErrCompensationFailed = errors.New("compensation failed")
