package model

import "time"

// Screening is a single showing of a movie in a room.  Screenings are
// immutable once created; the catalog owns their lifecycle and the
// admission engine only ever reads them.
//
// Fields:
//  ID            – opaque uuid identifier.
//  RoomID        – room where the screening takes place.
//  ScreeningTime – when the showing starts (UTC).
type Screening struct {
    ID            string    // screenings.screening_id
    RoomID        string    // screenings.room_id
    ScreeningTime time.Time // screenings.screening_time
}

// Room is a physical auditorium.  Its seat count bounds the seat key
// space guarded by the ledger: valid seat numbers are 1..SeatCount.
//
// Fields:
//  ID        – opaque uuid identifier.
//  Name      – unique human-entered name (e.g. "A1").
//  SeatCount – number of seats in the room.
type Room struct {
    ID        string // rooms.room_id
    Name      string // rooms.name
    SeatCount int    // rooms.seat_count
}
