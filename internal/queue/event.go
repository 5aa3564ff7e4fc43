// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedEvent is published when a claim or the new half
// of a move wins its seat.  It carries enough for downstream consumers
// to log or notify without querying the store.
type ReservationConfirmedEvent struct {
    ReservationID string `json:"reservation_id"`
    HolderID      string `json:"holder_id"`
    ScreeningID   string `json:"screening_id"`
    SeatNumber    int    `json:"seat_number"`
    ConfirmedAt   string `json:"confirmed_at"`
}

// ReservationAnomalyEvent is published when the old-seat release of a
// move could not be confirmed.  It is the observable signal for a
// latent double occupancy and must never be dropped silently.
type ReservationAnomalyEvent struct {
    Kind          string `json:"kind"`
    ReservationID string `json:"reservation_id"`
    HolderID      string `json:"holder_id"`
    ScreeningID   string `json:"screening_id"`
    SeatNumber    int    `json:"seat_number"`
    OccurredAt    string `json:"occurred_at"`
    Detail        string `json:"detail"`
}
