package model

import "time"

// Reservation records that a holder owns exactly one seat for a
// screening.  A reservation is minted fresh on every successful claim
// and on the "new" half of every move; ids are never reused, so a
// reservation id unambiguously names one (screening, seat, holder)
// binding for its whole lifetime.
//
// Fields:
//  ReservationID – opaque uuid minted on claim; never reused.
//  HolderID      – entity on whose behalf the seat is held.
//  ScreeningID   – screening the seat belongs to.
//  SeatNumber    – seat in [1, capacity] within the screening's room.
//  CreatedAt     – UTC timestamp of the winning claim.
type Reservation struct {
    ReservationID string    `json:"reservation_id"`
    HolderID      string    `json:"holder_id"`
    ScreeningID   string    `json:"screening_id"`
    SeatNumber    int       `json:"seat_number"`
    CreatedAt     time.Time `json:"created_at"`
}
