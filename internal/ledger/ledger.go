package ledger

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sort"
    "strconv"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/screening-admission/internal/model"
    "github.com/iliyamo/screening-admission/internal/store"
)

// indexBucket holds one entry per active reservation keyed by its id,
// pointing at the authoritative seat record.  Index entries are written
// blindly: reservation ids are minted fresh on every claim, so each
// index key only ever has one writer.
const indexBucket = "reservations:index"

// seatBucket names the bucket holding the seat records of a screening.
// The field within the bucket is the decimal seat number.
func seatBucket(screeningID string) string {
    return "screening:" + screeningID + ":seats"
}

// Ledger enforces the at-most-one-owner invariant for every
// (screening, seat) pair using the store's conditional primitives.  It
// never caches; every decision is a fresh round trip.
type Ledger struct {
    kv store.KV
}

// New returns a Ledger bound to the given store.
func New(kv store.KV) *Ledger { return &Ledger{kv: kv} }

// TryClaim attempts to create a new active reservation for the seat.
// The whole decision is a single insert-if-absent: no prior read, so
// there is no window in which two callers can both believe they won.
// On conflict it returns ErrSeatTaken; on store failure the returned
// error wraps store.ErrUnavailable and the outcome is unknown, so the
// caller must Lookup before re-claiming the same seat.  A winning
// insert whose index write fails is rolled back, so a claim never
// succeeds without being resolvable by Lookup.
func (l *Ledger) TryClaim(ctx context.Context, screeningID string, seat int, holderID string) (*model.Reservation, error) {
    rec := &model.Reservation{
        ReservationID: uuid.NewString(),
        HolderID:      holderID,
        ScreeningID:   screeningID,
        SeatNumber:    seat,
        CreatedAt:     time.Now().UTC(),
    }
    raw, err := json.Marshal(rec)
    if err != nil {
        return nil, fmt.Errorf("marshal reservation: %w", err)
    }
    won, err := l.kv.PutIfAbsent(ctx, seatBucket(screeningID), strconv.Itoa(seat), raw)
    if err != nil {
        return nil, err
    }
    if !won {
        return nil, ErrSeatTaken
    }
    // The index write makes the id resolvable.  If it fails the seat
    // insert is rolled back; otherwise the caller would hold a seat
    // under an id that Lookup cannot find and Release cannot free.
    // The rollback runs detached from the caller's context, which may
    // already be the reason the index write failed.
    if err := l.kv.Put(ctx, indexBucket, rec.ReservationID, raw); err != nil {
        rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
        defer cancel()
        if _, rbErr := l.kv.DeleteIfMatch(rbCtx, seatBucket(screeningID), strconv.Itoa(seat), raw); rbErr != nil {
            return nil, fmt.Errorf("index write failed and seat rollback failed (%v): %w", rbErr, err)
        }
        return nil, fmt.Errorf("index write failed, claim rolled back: %w", err)
    }
    return rec, nil
}

// TryRelease retires the reservation holding the seat, but only when
// its id matches reservationID.  A seat re-claimed by someone else
// after the caller's view went stale is left untouched and reported as
// ErrNotHolder; a vacant seat reports ErrNoActiveReservation.  The
// conditional delete matches the exact stored bytes, so a concurrent
// re-claim between the read and the delete simply fails the match and
// the loop re-reads.
func (l *Ledger) TryRelease(ctx context.Context, screeningID string, seat int, reservationID string) error {
    bucket := seatBucket(screeningID)
    field := strconv.Itoa(seat)
    for attempt := 0; attempt < 3; attempt++ {
        raw, err := l.kv.Get(ctx, bucket, field)
        if errors.Is(err, store.ErrNotFound) {
            return ErrNoActiveReservation
        }
        if err != nil {
            return err
        }
        rec, err := decode(raw)
        if err != nil {
            return err
        }
        if rec.ReservationID != reservationID {
            return ErrNotHolder
        }
        deleted, err := l.kv.DeleteIfMatch(ctx, bucket, field, raw)
        if err != nil {
            return err
        }
        if deleted {
            if err := l.kv.Delete(ctx, indexBucket, reservationID); err != nil {
                return fmt.Errorf("seat released but index cleanup failed: %w", err)
            }
            return nil
        }
        // Record changed under us; the next read decides.
    }
    return ErrNotHolder
}

// Lookup resolves a reservation id to its current record.  The index
// entry alone is not trusted: the authoritative seat record must still
// carry the same id, otherwise the reservation has been retired or
// superseded and ErrReservationNotFound is returned.
func (l *Ledger) Lookup(ctx context.Context, reservationID string) (*model.Reservation, error) {
    raw, err := l.kv.Get(ctx, indexBucket, reservationID)
    if errors.Is(err, store.ErrNotFound) {
        return nil, ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    rec, err := decode(raw)
    if err != nil {
        return nil, err
    }
    seatRaw, err := l.kv.Get(ctx, seatBucket(rec.ScreeningID), strconv.Itoa(rec.SeatNumber))
    if errors.Is(err, store.ErrNotFound) {
        return nil, ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    current, err := decode(seatRaw)
    if err != nil {
        return nil, err
    }
    if current.ReservationID != reservationID {
        return nil, ErrReservationNotFound
    }
    return current, nil
}

// ListOccupied returns the occupied seat numbers of a screening in
// ascending order.  The result is a best-effort snapshot and is not
// linearized with concurrent claims.
func (l *Ledger) ListOccupied(ctx context.Context, screeningID string) ([]int, error) {
    entries, err := l.kv.List(ctx, seatBucket(screeningID))
    if err != nil {
        return nil, err
    }
    seats := make([]int, 0, len(entries))
    for field := range entries {
        n, err := strconv.Atoi(field)
        if err != nil {
            return nil, fmt.Errorf("malformed seat key %q: %w", field, err)
        }
        seats = append(seats, n)
    }
    sort.Ints(seats)
    return seats, nil
}

// Occupants returns the full reservation records of a screening keyed
// by seat number.  The harness uses it to check conservation.
func (l *Ledger) Occupants(ctx context.Context, screeningID string) (map[int]*model.Reservation, error) {
    entries, err := l.kv.List(ctx, seatBucket(screeningID))
    if err != nil {
        return nil, err
    }
    out := make(map[int]*model.Reservation, len(entries))
    for field, raw := range entries {
        n, err := strconv.Atoi(field)
        if err != nil {
            return nil, fmt.Errorf("malformed seat key %q: %w", field, err)
        }
        rec, err := decode(raw)
        if err != nil {
            return nil, err
        }
        out[n] = rec
    }
    return out, nil
}

// IndexedReservations returns a decoded snapshot of the reservation-id
// index.  An entry can be stale when a release removed the seat record
// but the index cleanup failed; callers filter those through Lookup.
func (l *Ledger) IndexedReservations(ctx context.Context) (map[string]*model.Reservation, error) {
    entries, err := l.kv.List(ctx, indexBucket)
    if err != nil {
        return nil, err
    }
    out := make(map[string]*model.Reservation, len(entries))
    for rid, raw := range entries {
        rec, err := decode(raw)
        if err != nil {
            return nil, fmt.Errorf("index entry %s: %w", rid, err)
        }
        out[rid] = rec
    }
    return out, nil
}

// decode parses a stored reservation record.  A record that fails to
// parse is a fatal condition for the calling operation.
func decode(raw []byte) (*model.Reservation, error) {
    var rec model.Reservation
    if err := json.Unmarshal(raw, &rec); err != nil {
        return nil, fmt.Errorf("malformed reservation record: %w", err)
    }
    return &rec, nil
}
