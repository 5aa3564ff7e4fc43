package allocator

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/iliyamo/screening-admission/internal/ledger"
    "github.com/iliyamo/screening-admission/internal/model"
    "github.com/iliyamo/screening-admission/internal/store"
)

// Catalog is the external collaborator that owns screenings and rooms.
// The allocator only ever reads from it, and always before touching
// the ledger.
type Catalog interface {
    ScreeningExists(ctx context.Context, screeningID string) (bool, error)
    SeatCapacity(ctx context.Context, screeningID string) (int, error)
    ResolveScreening(ctx context.Context, roomName string, startsAt time.Time) (string, error)
}

// AnomalyReporter receives compensation anomalies from Move.  Reports
// must not block the calling operation; implementations publish to the
// broker and log.
type AnomalyReporter interface {
    ReportAnomaly(ctx context.Context, a Anomaly)
}

// Anomaly describes an old-seat release that did not complete cleanly
// after a successful move.  Kind is "stale" when the record no longer
// matched (lost to a concurrent claim of the freed seat) and
// "unreleased" when the store stayed unavailable for the whole retry
// budget, leaving the seat occupied under a retired reservation.
type Anomaly struct {
    Kind          string    `json:"kind"`
    ReservationID string    `json:"reservation_id"`
    ScreeningID   string    `json:"screening_id"`
    SeatNumber    int       `json:"seat_number"`
    HolderID      string    `json:"holder_id"`
    OccurredAt    time.Time `json:"occurred_at"`
    Detail        string    `json:"detail"`
}

// MoveResult is the outcome of a successful Move.  Compensated is
// false when the old seat could not be confirmed released; the new
// reservation is valid either way.
type MoveResult struct {
    Reservation *model.Reservation
    Compensated bool
}

// Allocator orchestrates the ledger with catalog validation and a
// compensation policy for the two-phase move.  It holds no reservation
// state between calls.
type Allocator struct {
    ledger    *ledger.Ledger
    catalog   Catalog
    anomalies AnomalyReporter

    releaseAttempts int
    releaseBackoff  time.Duration
}

// Option tweaks allocator policy.
type Option func(*Allocator)

// WithReleasePolicy bounds the retry loop for the old-seat release of
// a move: attempts tries with backoff between them (doubling each
// time).
func WithReleasePolicy(attempts int, backoff time.Duration) Option {
    return func(a *Allocator) {
        if attempts > 0 {
            a.releaseAttempts = attempts
        }
        if backoff > 0 {
            a.releaseBackoff = backoff
        }
    }
}

// WithAnomalyReporter routes compensation anomalies to r instead of
// only the process log.
func WithAnomalyReporter(r AnomalyReporter) Option {
    return func(a *Allocator) { a.anomalies = r }
}

// New builds an Allocator.  ledger and catalog must be non-nil.
func New(l *ledger.Ledger, c Catalog, opts ...Option) *Allocator {
    if l == nil || c == nil {
        panic("nil dependency passed to allocator.New")
    }
    a := &Allocator{
        ledger:          l,
        catalog:         c,
        releaseAttempts: 4,
        releaseBackoff:  100 * time.Millisecond,
    }
    for _, opt := range opts {
        opt(a)
    }
    return a
}

// validateScreening checks the screening exists in the catalog.
func (a *Allocator) validateScreening(ctx context.Context, screeningID string) error {
    exists, err := a.catalog.ScreeningExists(ctx, screeningID)
    if err != nil {
        return fmt.Errorf("catalog: %w", err)
    }
    if !exists {
        return ErrScreeningNotFound
    }
    return nil
}

// validateSeat checks screening existence and seat range against the
// catalog.
func (a *Allocator) validateSeat(ctx context.Context, screeningID string, seat int) error {
    if err := a.validateScreening(ctx, screeningID); err != nil {
        return err
    }
    capacity, err := a.catalog.SeatCapacity(ctx, screeningID)
    if err != nil {
        return fmt.Errorf("catalog: %w", err)
    }
    if seat < 1 || seat > capacity {
        return ErrSeatOutOfRange
    }
    return nil
}

// Claim attempts to reserve the seat for the holder.  It never retries
// internally: ledger.ErrSeatTaken is a definitive outcome and picking
// another seat is the caller's decision.  On an error wrapping
// store.ErrUnavailable the outcome is unknown; callers should Get a
// recent reservation before re-claiming to avoid duplicate holds.
func (a *Allocator) Claim(ctx context.Context, screeningID string, seat int, holderID string) (*model.Reservation, error) {
    if err := a.validateSeat(ctx, screeningID, seat); err != nil {
        return nil, err
    }
    return a.ledger.TryClaim(ctx, screeningID, seat, holderID)
}

// Move retires the reservation and mints a new one on newSeat for the
// same holder.  Phase one claims the new seat; if that loses, the move
// aborts with ledger.ErrSeatTaken and the old reservation is
// untouched, so the holder never ends up seatless.  Phase two releases
// the old seat with bounded retries; failures there never fail the
// move but are reported as anomalies, because an unreleased old seat
// is a latent double occupancy.
func (a *Allocator) Move(ctx context.Context, reservationID string, newSeat int) (*MoveResult, error) {
    old, err := a.ledger.Lookup(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if err := a.validateSeat(ctx, old.ScreeningID, newSeat); err != nil {
        return nil, err
    }
    if newSeat == old.SeatNumber {
        // Moving onto the seat already held would claim against our
        // own record and always lose; report it as taken.
        return nil, ledger.ErrSeatTaken
    }
    created, err := a.ledger.TryClaim(ctx, old.ScreeningID, newSeat, old.HolderID)
    if err != nil {
        return nil, err
    }
    compensated := a.releaseOld(ctx, old)
    return &MoveResult{Reservation: created, Compensated: compensated}, nil
}

// releaseOld runs the compensation phase of a move and reports true
// when the old seat was confirmed released (or already gone).
func (a *Allocator) releaseOld(ctx context.Context, old *model.Reservation) bool {
    backoff := a.releaseBackoff
    var lastErr error
    for attempt := 0; attempt < a.releaseAttempts; attempt++ {
        err := a.ledger.TryRelease(ctx, old.ScreeningID, old.SeatNumber, old.ReservationID)
        switch {
        case err == nil, errors.Is(err, ledger.ErrNoActiveReservation):
            return true
        case errors.Is(err, ledger.ErrNotHolder):
            // The old seat was re-claimed after a stale concurrent
            // move already retired our record.  Nothing to release,
            // but the collision is worth surfacing.
            a.report(ctx, Anomaly{
                Kind:          "stale",
                ReservationID: old.ReservationID,
                ScreeningID:   old.ScreeningID,
                SeatNumber:    old.SeatNumber,
                HolderID:      old.HolderID,
                OccurredAt:    time.Now().UTC(),
                Detail:        "old seat held under a different reservation at release time",
            })
            return false
        }
        lastErr = err
        if attempt < a.releaseAttempts-1 {
            select {
            case <-time.After(backoff):
            case <-ctx.Done():
                attempt = a.releaseAttempts // exhaust
            }
            backoff *= 2
        }
    }
    a.report(ctx, Anomaly{
        Kind:          "unreleased",
        ReservationID: old.ReservationID,
        ScreeningID:   old.ScreeningID,
        SeatNumber:    old.SeatNumber,
        HolderID:      old.HolderID,
        OccurredAt:    time.Now().UTC(),
        Detail:        fmt.Sprintf("%v: %v", ErrCompensationFailed, lastErr),
    })
    return false
}

func (a *Allocator) report(ctx context.Context, an Anomaly) {
    log.Printf("allocator: anomaly kind=%s reservation=%s screening=%s seat=%d: %s",
        an.Kind, an.ReservationID, an.ScreeningID, an.SeatNumber, an.Detail)
    if a.anomalies != nil {
        a.anomalies.ReportAnomaly(ctx, an)
    }
}

// Release retires the reservation.  It is idempotent: an unknown or
// already-released id is a no-op success.  Lookup has already verified
// the seat record carried our id, so a NotHolder outcome here means a
// concurrent operation retired it first — also a no-op.  Only store
// faults are surfaced.
func (a *Allocator) Release(ctx context.Context, reservationID string) error {
    rec, err := a.ledger.Lookup(ctx, reservationID)
    if errors.Is(err, ledger.ErrReservationNotFound) {
        return nil
    }
    if err != nil {
        return err
    }
    err = a.ledger.TryRelease(ctx, rec.ScreeningID, rec.SeatNumber, reservationID)
    if errors.Is(err, ledger.ErrNoActiveReservation) || errors.Is(err, ledger.ErrNotHolder) {
        return nil
    }
    return err
}

// Get returns the reservation's current record for display.
func (a *Allocator) Get(ctx context.Context, reservationID string) (*model.Reservation, error) {
    return a.ledger.Lookup(ctx, reservationID)
}

// ListAvailable computes {1..capacity} minus the occupied snapshot, in
// ascending order.  The result is advisory: a listed seat can be
// claimed by someone else before the caller acts, and a subsequent
// Claim may still report the seat taken.
func (a *Allocator) ListAvailable(ctx context.Context, screeningID string) ([]int, error) {
    if err := a.validateScreening(ctx, screeningID); err != nil {
        return nil, err
    }
    capacity, err := a.catalog.SeatCapacity(ctx, screeningID)
    if err != nil {
        return nil, fmt.Errorf("catalog: %w", err)
    }
    occupied, err := a.ledger.ListOccupied(ctx, screeningID)
    if err != nil {
        return nil, err
    }
    taken := make(map[int]struct{}, len(occupied))
    for _, s := range occupied {
        taken[s] = struct{}{}
    }
    available := make([]int, 0, capacity-len(occupied))
    for s := 1; s <= capacity; s++ {
        if _, ok := taken[s]; !ok {
            available = append(available, s)
        }
    }
    return available, nil
}

// StoreUnavailable reports whether err stems from the resource store
// being unreachable, so handlers can map it to a 503.
func StoreUnavailable(err error) bool {
    return errors.Is(err, store.ErrUnavailable)
}
